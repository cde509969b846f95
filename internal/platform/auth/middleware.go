package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	defaultUserIDHeader = "X-User-Id"
	defaultRolesHeader  = "X-User-Roles"
	defaultFallbackRole = RoleUser
)

// Authenticator extracts the verified identity headers injected by the
// fronting gateway and enforces role boundaries.
type Authenticator struct {
	userIDHeader string
	rolesHeader  string
	fallbackRole string
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithUserIDHeader overrides the header carrying the verified user id.
func WithUserIDHeader(header string) Option {
	return func(a *Authenticator) {
		header = strings.TrimSpace(header)
		if header != "" {
			a.userIDHeader = header
		}
	}
}

// WithRolesHeader overrides the header carrying the comma-separated role list.
func WithRolesHeader(header string) Option {
	return func(a *Authenticator) {
		header = strings.TrimSpace(header)
		if header != "" {
			a.rolesHeader = header
		}
	}
}

// WithFallbackRole sets the default role when the gateway forwards none.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(opts ...Option) *Authenticator {
	a := &Authenticator{
		userIDHeader: defaultUserIDHeader,
		rolesHeader:  defaultRolesHeader,
		fallbackRole: defaultFallbackRole,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RequireIdentity ensures the gateway forwarded a user id and, when roles are
// given, that the identity carries at least one of them.
func (a *Authenticator) RequireIdentity(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			uid := strings.TrimSpace(r.Header.Get(a.userIDHeader))
			if uid == "" {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "identity header missing")
				return
			}

			identity := &Identity{
				UID:   uid,
				Roles: rolesFromHeader(r.Header.Get(a.rolesHeader)),
			}
			if len(identity.Roles) == 0 && a.fallbackRole != "" {
				identity.Roles = []string{a.fallbackRole}
			}

			if len(identity.Roles) == 0 {
				respondAuthError(w, http.StatusUnauthorized, "missing_role", "no roles associated with identity")
				return
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func rolesFromHeader(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		role := normaliseRole(part)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
