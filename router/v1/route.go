package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gomerchant/handler"
)

// Handlers are the authenticated API handlers
type Handlers struct {
	Gateways     *handler.GatewayHandler
	Config       *handler.ConfigHandler
	Payment      *handler.PaymentHandler
	Transactions *handler.TransactionHandler
}

// Routes registers all API routes
func Routes(r chi.Router, h Handlers) {
	// Gateway catalogue
	r.Get("/gateways", h.Gateways.ListGateways)
	r.Get("/gateways/{gateway}", h.Gateways.GetGateway)

	// Account credentials and card operations
	r.Route("/accounts/{account}", func(r chi.Router) {
		r.Get("/", h.Config.ListAccountGateways)

		r.Route("/{gateway}", func(r chi.Router) {
			r.Put("/", h.Config.SetConfig)
			r.Get("/", h.Config.GetConfig)
			r.Delete("/", h.Config.DeleteConfig)

			// purchase, authorize, capture, void, credit, store, unstore
			r.Post("/{operation}", h.Payment.Operation)
		})
	})

	// Transaction log
	r.Get("/transactions", h.Transactions.ListTransactions)
	r.Get("/stats/{gateway}", h.Transactions.GatewayStats)
}
