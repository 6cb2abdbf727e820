package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/astrobot/server/internal/auth"
	"github.com/astrobot/server/internal/http/handlers"
	"github.com/astrobot/server/internal/middleware"
)

// RouterDeps are the handlers and services the router mounts.
type RouterDeps struct {
	Webhook *handlers.WebhookHandler
	Admin   *handlers.AdminHandler
	Health  *handlers.HealthHandler
	JWT     *auth.JWTService
	// WebhookLimiter bounds webhook calls per client IP. Nil disables it.
	WebhookLimiter *middleware.RateLimiter
	// AdminOrigins are the browser origins allowed on /admin.
	AdminOrigins []string
	// RequestTimeout cancels a request's context. Zero means 30s.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", d.Health.ServeHTTP)

	r.Group(func(r chi.Router) {
		if d.WebhookLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(d.WebhookLimiter, middleware.GetIPKey))
		}
		r.Post("/webhook", d.Webhook.HandleWebhook)
	})

	// Operator routes (require a valid operator JWT)
	r.Route("/admin", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AdminOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Use(middleware.OperatorAuth(d.JWT))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", d.Admin.HandleGetUser)
			r.Post("/reset", d.Admin.HandleResetSession)
			r.Put("/subscription", d.Admin.HandleSetSubscription)
		})
	})

	return r
}
