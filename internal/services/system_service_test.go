package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/kharidari/api/internal/domain"
)

type stubHealthRepository struct {
	collectFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collectFunc != nil {
		return s.collectFunc(ctx)
	}
	return domain.SystemHealthReport{}, nil
}

func TestSystemServiceHealthReportDerivesStatus(t *testing.T) {
	ctx := context.Background()
	repo := &stubHealthRepository{
		collectFunc: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
					"pubsub":    {Status: domain.HealthStatusDegraded, Error: "slow publish"},
				},
			}, nil
		},
	}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(ctx)
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.GeneratedAt.IsZero() {
		t.Fatalf("expected generated timestamp")
	}
}

func TestSystemServiceHealthReportErrorWins(t *testing.T) {
	ctx := context.Background()
	repo := &stubHealthRepository{
		collectFunc: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusError, Error: "unavailable"},
					"pubsub":    {Status: domain.HealthStatusDegraded},
				},
			}, nil
		},
	}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(ctx)
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
}

func TestSystemServiceHealthReportPropagatesFailure(t *testing.T) {
	ctx := context.Background()
	probeErr := errors.New("collect failed")
	repo := &stubHealthRepository{
		collectFunc: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, probeErr
		},
	}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	if _, err := svc.HealthReport(ctx); !errors.Is(err, probeErr) {
		t.Fatalf("expected probe error, got %v", err)
	}
}

func TestSystemServiceUptime(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := started
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{},
		Clock:            func() time.Time { return current },
		Build: BuildInfo{
			Version:     "1.4.0",
			Environment: "test",
			StartedAt:   started,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	current = started.Add(90 * time.Second)
	if got := svc.Uptime(); got != 90*time.Second {
		t.Fatalf("expected 90s uptime, got %s", got)
	}
	if build := svc.Build(); build.Version != "1.4.0" || build.Environment != "test" {
		t.Fatalf("unexpected build info %#v", build)
	}
}
