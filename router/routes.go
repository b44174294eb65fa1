package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/handler"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/mstgnz/gomerchant/infra/middle"
	"github.com/mstgnz/gomerchant/infra/response"
	v1 "github.com/mstgnz/gomerchant/router/v1"
)

// Deps are the services the HTTP API is built from
type Deps struct {
	Config       *config.AppConfig
	Registry     *gateway.Registry
	Accounts     *config.AccountConfig
	Service      *gateway.Service
	Transactions gateway.TransactionReader
	Stats        handler.StatsReader
	Health       handler.HealthOptions
}

// New builds the HTTP API; the returned func releases background resources
func New(deps Deps) (http.Handler, func()) {
	if deps.Registry == nil {
		deps.Registry = gateway.DefaultRegistry
	}
	if deps.Health.Registry == nil {
		deps.Health.Registry = deps.Registry
	}
	cfg := deps.Config

	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middle.RequestIDMiddleware())
	r.Use(middle.ClientIPMiddleware(cfg.TrustedProxies))
	r.Use(middle.RequestLoggingMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())

	// Security Middleware
	rateLimiter := middle.NewRateLimiter(cfg.RateLimit)
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitList(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300, // Preflight cache time (second)
	}))
	r.Use(middle.RequestValidationMiddleware())
	r.Use(middle.IPWhitelistMiddleware(cfg.IPWhitelist))
	r.Use(middle.RateLimitMiddleware(rateLimiter))

	// Health check endpoint (no auth required)
	r.Get("/health", handler.NewHealthHandler(deps.Health).CheckHealth)

	// Webhook routes for processor notifications (signature verified, no API key)
	webhookHandler := handler.NewWebhookHandler(deps.Accounts)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe/{account}", webhookHandler.StripeWebhook)
	})

	// API routes with authentication
	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.AuthMiddleware(cfg.APIKey))

		v1.Routes(r, v1.Handlers{
			Gateways:     handler.NewGatewayHandler(deps.Registry),
			Config:       handler.NewConfigHandler(deps.Accounts, deps.Registry, deps.Service),
			Payment:      handler.NewPaymentHandler(deps.Service, deps.Registry, config.App().Validator),
			Transactions: handler.NewTransactionHandler(deps.Transactions, deps.Stats, cfg.TransactionLimit),
		})
	})

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
	})

	return r, rateLimiter.Stop
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
