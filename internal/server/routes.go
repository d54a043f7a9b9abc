package server

import (
	"net/http"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chatrelay/chatrelay/internal/errors"
	"github.com/chatrelay/chatrelay/internal/observability"
	"github.com/chatrelay/chatrelay/internal/server/handlers"
)

const adminTokenEnv = "CHATRELAY_ADMIN_TOKEN"

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Relay API
	if s.relay != nil {
		s.router.Route("/v1", func(r chi.Router) {
			r.Post("/messages/text", s.relay.SubmitText)
			r.Post("/messages/image", s.relay.SubmitImage)
			r.Post("/messages/{chatID}/{messageID}/page", s.relay.Navigate)
			r.Delete("/messages/{chatID}/{messageID}", s.relay.ForgetMessage)
			r.Delete("/chats/{chatID}", s.relay.ForgetChat)
		})
	}

	// Admin surface (requires CHATRELAY_ADMIN_TOKEN)
	s.registerAdminEndpoints()
}

// registerAdminEndpoints registers the token-protected admin surface.
// Without a token the endpoints stay unregistered entirely.
func (s *Server) registerAdminEndpoints() {
	adminToken := os.Getenv(adminTokenEnv)
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin endpoints disabled (no " + adminTokenEnv + " set)")
		}
		return
	}

	// Signal endpoint with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/signal", handler.ServeHTTP)

		if s.relay == nil {
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(adminToken))
			r.Get("/stats", s.relay.Stats)
			r.Get("/rate-limits", s.relay.RateLimits)
			r.Post("/rate-limits/reset", s.relay.ResetRateLimits)
			r.Get("/vips", s.relay.ListVIPs)
			r.Post("/vips", s.relay.AddVIP)
			r.Delete("/vips/{userID}", s.relay.RemoveVIP)
			r.Post("/jobs/sweep", s.relay.SweepJobs)
		})
	})

	if logger != nil {
		logger.Info("Admin endpoints enabled",
			zap.String("path", "/admin"),
			zap.String("auth", "bearer token"))
		logger.Warn("Admin endpoints enabled - ensure this server is not exposed to public internet")
	}
}

// bearerAuth guards the admin subrouter with a shared token.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			provided, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || provided != token {
				HandleError(w, r, apperrors.NewUnauthorizedError("valid bearer token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
