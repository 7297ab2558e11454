package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/paylode/paylode/internal/auth"
	"github.com/paylode/paylode/internal/handlers"
	"github.com/paylode/paylode/internal/middleware"
	"github.com/paylode/paylode/internal/models"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	sessionChecker auth.SessionChecker,
) {
	authLimit := middleware.RateLimitByIP(middleware.AuthRateLimit())
	apiLimit := middleware.RateLimitByIP(middleware.APIRateLimit())

	// Public credential endpoints, tightly rate limited
	router.With(authLimit).Post("/api/auth/signup", authHandler.Signup)
	router.With(authLimit).Post("/api/auth/login", authHandler.Login)
	router.With(authLimit).Post("/api/auth/refresh", authHandler.Refresh)

	// Authenticated endpoints: verified access token plus a live session chain
	router.Group(func(r chi.Router) {
		r.Use(apiLimit)
		r.Use(auth.Authenticate(tokenManager))
		r.Use(auth.RequireActiveSession(sessionChecker))

		r.Get("/api/auth/me", authHandler.Me)
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Post("/api/auth/logout-all", authHandler.LogoutAll)
		r.Post("/api/auth/totp/setup", authHandler.SetupTOTP)
		r.Post("/api/auth/totp/verify", authHandler.VerifyTOTP)

		// Staff and up may read the user listing
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireMinRole(models.RoleStaff))
			r.Get("/api/admin/users", adminHandler.ListUsers)
			r.Get("/api/admin/users/{id}", adminHandler.GetUser)
		})

		// Mutating admin operations need ADMIN or above
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireMinRole(models.RoleAdmin))
			r.Put("/api/admin/users/{id}/role", adminHandler.ChangeRole)
			r.Post("/api/admin/users/{id}/suspend", adminHandler.Suspend)
			r.Post("/api/admin/users/{id}/reinstate", adminHandler.Reinstate)
			r.Delete("/api/admin/users/{id}/sessions", adminHandler.RevokeSessions)
			r.Get("/api/admin/audit", adminHandler.ListAudit)
		})
	})
}
