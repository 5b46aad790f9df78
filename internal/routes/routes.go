package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/handlers"
	"github.com/ignitionhq/ignition/internal/middleware"
)

// RegisterRoutes registers all application routes.
//
// The origin gate wraps every mutating endpoint, session-bearing or not: the
// unauthenticated reset endpoint is still browser-reachable and still
// forgeable without it. The OAuth callback is a GET navigation and stays
// outside the gate; its forgery protection is the single-use state.
func RegisterRoutes(
	router chi.Router,
	gate *auth.OriginGate,
	resolver *auth.SessionResolver,
	users auth.UserStore,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	vaultHandler *handlers.VaultHandler,
	adminHandler *handlers.AdminHandler,
	logger *slog.Logger,
) {
	authLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	unlockLimit := middleware.RateLimitByIP(middleware.DefaultUnlockRateLimit())
	recoveryLimit := middleware.RateLimitByIP(middleware.DefaultRecoveryRateLimit())

	router.Get("/health", healthHandler.Health)

	// Every route below resolves the session cookie; anonymous requests pass
	// through and the guards decide.
	router.Group(func(r chi.Router) {
		r.Use(resolver.Middleware)
		r.Use(gate.Middleware)

		r.Get("/auth/providers", authHandler.Providers)
		r.With(authLimit).Get("/auth/signin/{provider}", authHandler.Signin)
		r.With(authLimit).Get("/auth/callback/{provider}", authHandler.Callback)
		r.Get("/auth/session", authHandler.Session(users))
		r.Post("/auth/signout", authHandler.Signout)
		r.Post("/auth/claim-admin", authHandler.ClaimAdmin)

		// The recovery code is the credential; no session required.
		r.With(recoveryLimit).Post("/api/vault/reset-passphrase", vaultHandler.ResetPassphrase)

		// Authenticated API surface
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(users, logger))

			r.Post("/auth/accept-tos", authHandler.AcceptTos)

			r.Route("/api/vault", func(r chi.Router) {
				r.Get("/", vaultHandler.Status)
				r.Post("/lock", vaultHandler.Lock)
				r.With(unlockLimit).Post("/unlock", vaultHandler.Unlock)
				r.Post("/change-passphrase", vaultHandler.ChangePassphrase)
				r.Post("/recovery-codes", vaultHandler.GenerateRecoveryCodes)
			})

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/api/admin/audit", adminHandler.ListAuditLogs)
				r.Post("/api/admin/users/{userID}/vault/lock", adminHandler.ForceLockVault)
			})
		})
	})
}
