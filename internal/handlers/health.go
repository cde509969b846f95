package handlers

import (
	"net/http"
	"time"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/platform/httpx"
	"github.com/kharidari/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Liveness never touches
// dependencies; readiness collects the dependency health report.
type HealthHandlers struct {
	system services.SystemService
	clock  func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithSystemService attaches the system service used for readiness reports.
func WithSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the clock, for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	}
	if h.system != nil {
		build := h.system.Build()
		if build.Version != "" {
			payload["version"] = build.Version
		}
		payload["uptime"] = h.system.Uptime().String()
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz reports dependency readiness. A failed or error-status report maps
// to 503 so load balancers stop routing traffic here.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_unavailable", "failed to collect health report", http.StatusServiceUnavailable))
		return
	}

	checks := make(map[string]healthCheckPayload, len(report.Checks))
	for name, check := range report.Checks {
		entry := healthCheckPayload{Status: string(check.Status)}
		if check.Detail != "" {
			entry.Detail = check.Detail
		}
		if check.Error != "" {
			entry.Error = check.Error
		}
		if check.Latency > 0 {
			entry.LatencyMS = check.Latency.Milliseconds()
		}
		checks[name] = entry
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, healthReportPayload{
		Status:      string(report.Status),
		Checks:      checks,
		GeneratedAt: formatTime(report.GeneratedAt),
	})
}

type healthReportPayload struct {
	Status      string                        `json:"status"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	GeneratedAt string                        `json:"generated_at,omitempty"`
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}
