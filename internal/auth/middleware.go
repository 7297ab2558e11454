package auth

import (
	"context"
	"net/http"
	"strings"

	pkghttp "github.com/paylode/paylode/pkg/http"

	"github.com/paylode/paylode/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

// ClaimsContextKey is the key for storing verified token claims in context
const ClaimsContextKey contextKey = "claims"

// SessionChecker answers the strong revocation question for routes that
// need guarantees beyond stateless token verification.
type SessionChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Authenticate validates the bearer access token and injects its claims
// into the request context. Verification is stateless: signature and expiry
// only. A missing header is 401; a present but unusable token is 403.
func Authenticate(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.VerifyAccess(parts[1])
			if err != nil {
				pkghttp.WriteForbidden(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActiveSession rejects requests whose session chain has been
// revoked, even when the access token itself is still unexpired. Used on
// routes where admin suspension must take effect immediately; the check
// fails closed when the registry is unreachable.
func RequireActiveSession(checker SessionChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			revoked, err := checker.IsRevoked(r.Context(), claims.SessionID)
			if err != nil {
				pkghttp.WriteServiceUnavailable(w, "unable to verify session status")
				return
			}
			if revoked {
				pkghttp.WriteForbidden(w, "session has been revoked")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole enforces exact-set role membership: only the listed roles
// pass, regardless of hierarchy.
func RequireRole(allowed ...models.Role) func(next http.Handler) http.Handler {
	allowedSet := make(map[models.Role]bool, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if !allowedSet[claims.Role] {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinRole enforces an ordinal threshold: min and everything above
// it passes ("ADMIN or higher" style gates).
func RequireMinRole(min models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if !claims.Role.AtLeast(min) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims extracts verified token claims from the request context
func GetClaims(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
