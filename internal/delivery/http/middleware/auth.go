package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	h "eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/domain"
)

type contextKey string

const claimsKey contextKey = "claims"

// SetClaims returns a context carrying the authenticated claims. Used by auth middleware.
func SetClaims(ctx context.Context, claims domain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the authenticated claims from the context, if present.
func ClaimsFromContext(ctx context.Context) (domain.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(domain.Claims)
	return c, ok
}

// Actor describes the caller of r for audit records. Anonymous callers carry only
// their network identity.
func Actor(r *http.Request) domain.Actor {
	actor := domain.Actor{
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if c, ok := ClaimsFromContext(r.Context()); ok {
		actor.UserID = c.UserID
		actor.Username = c.Username
		actor.Role = c.Role
	}
	return actor
}

// RequireAuth returns a wrapper that validates the Bearer token and sets the claims in the request context.
// If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, msg := authenticate(verifier, r)
			if claims == nil {
				if logger != nil {
					logger.DebugContext(r.Context(), "authentication rejected", "path", r.URL.Path, "reason", msg)
				}
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, msg)
				return
			}
			r = r.WithContext(SetClaims(r.Context(), *claims))
			next(w, r)
		}
	}
}

// RequireAdmin is RequireAuth plus a role check. Authenticated non-admins get 403.
func RequireAdmin(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	auth := RequireAuth(verifier, logger)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return auth(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if !claims.IsAdmin() {
				if logger != nil {
					logger.WarnContext(r.Context(), "admin route denied", "path", r.URL.Path, "user_id", claims.UserID)
				}
				h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "admin role required")
				return
			}
			next(w, r)
		})
	}
}

func authenticate(verifier domain.TokenVerifier, r *http.Request) (*domain.Claims, string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, "missing authorization header"
	}
	const prefix = "Bearer "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return nil, "invalid authorization format"
	}
	token := strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return nil, "missing token"
	}
	claims, err := verifier.Verify(token)
	if err != nil || claims == nil {
		return nil, "invalid or expired token"
	}
	return claims, ""
}
