package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// AuthRateLimit is the budget for unauthenticated credential endpoints.
// Tight enough to slow online guessing, loose enough that a user fumbling a
// password plus a TOTP code does not hit it before the account lockout does.
func AuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// APIRateLimit is the budget for authenticated endpoints.
func APIRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 120, Window: time.Minute}
}

// RateLimitByIP limits requests per client IP within the configured window.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"Rate limit exceeded"}`))
		}),
	)
}
