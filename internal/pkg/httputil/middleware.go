package httputil

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bissquit/pos-identity/internal/domain"
	"github.com/bissquit/pos-identity/internal/pkg/ctxlog"
	"github.com/bissquit/pos-identity/internal/pkg/metrics"
)

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (originsSet[origin] || originsSet["*"]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

// Context keys for storing caller information.
const (
	principalKey contextKey = "principal"
	userKey      contextKey = "user"
)

// Principal identifies the caller of a request as asserted by its access token.
type Principal struct {
	UserID   string
	TenantID string
}

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Principal, error)
}

// Authorizer decides whether a user may act with one of the allowed roles.
// It returns domain.ErrNotAuthorized when the user exists but is not permitted.
type Authorizer interface {
	Authorize(ctx context.Context, tenantID, userID string, allowed domain.RoleSet) (*domain.User, error)
}

// AuthMiddleware verifies the bearer token and stores the Principal in the context.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				rejectUnauthenticated(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				rejectUnauthenticated(w, "invalid authorization header format")
				return
			}

			principal, err := verifier.VerifyToken(r.Context(), parts[1])
			if err != nil {
				ctxlog.FromContext(r.Context()).Debug("token rejected", "error", err)
				rejectUnauthenticated(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			ctx = ctxlog.With(ctx, "tenant_id", principal.TenantID, "user_id", principal.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles creates RBAC middleware. The caller is loaded through authz on
// every request, so deactivation and role changes apply immediately. Role
// matching is exact; admin does not satisfy a manager-only route.
// Authorizer errors other than domain.ErrNotAuthorized go through mappings.
func RequireRoles(authz Authorizer, mappings []ErrorMapping, roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := domain.NewRoleSet(roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				rejectUnauthenticated(w, "unauthorized")
				return
			}

			user, err := authz.Authorize(r.Context(), principal.TenantID, principal.UserID, allowed)
			if err != nil {
				if errors.Is(err, domain.ErrNotAuthorized) {
					metrics.HTTPRequestsRejected.WithLabelValues("forbidden").Inc()
					Error(w, http.StatusForbidden, "insufficient permissions")
					return
				}
				HandleError(r.Context(), w, err, mappings)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the token principal from context.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// GetUser extracts the authorized caller from context.
// Only set behind RequireRoles.
func GetUser(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userKey).(*domain.User); ok {
		return u
	}
	return nil
}

// WithPrincipal returns a context carrying p. Intended for tests and internal callers.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func rejectUnauthenticated(w http.ResponseWriter, message string) {
	metrics.HTTPRequestsRejected.WithLabelValues("unauthenticated").Inc()
	Error(w, http.StatusUnauthorized, message)
}
