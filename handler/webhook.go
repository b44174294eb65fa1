package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/mstgnz/gomerchant/infra/logger"
	"github.com/mstgnz/gomerchant/infra/response"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBytes = 64 << 10

// WebhookHandler verifies and records processor notifications
type WebhookHandler struct {
	configs gateway.ConfigSource
}

// WebhookReceipt acknowledges a verified notification
type WebhookReceipt struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(configs gateway.ConfigSource) *WebhookHandler {
	return &WebhookHandler{configs: configs}
}

// StripeWebhook verifies the Stripe-Signature of an event with the account's signing secret
func (h *WebhookHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	cfg, err := h.configs.GetConfig(account, "stripe")
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			response.Error(w, http.StatusNotFound, "Configuration not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to access configuration", err)
		return
	}

	secret := cfg["webhookSecret"]
	if secret == "" {
		response.Error(w, http.StatusBadRequest, "Webhook secret not configured", nil)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		logger.Warn("Rejected Stripe webhook", logger.LogContext{
			Account: account,
			Gateway: "stripe",
			Fields:  map[string]any{"error": err.Error()},
		})
		response.Error(w, http.StatusBadRequest, "Invalid webhook signature", err)
		return
	}

	logger.Info("Stripe webhook received", logger.LogContext{
		Account: account,
		Gateway: "stripe",
		Fields: map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"livemode":   event.Livemode,
		},
	})

	response.Success(w, http.StatusOK, "Webhook received", WebhookReceipt{
		ID:   event.ID,
		Type: string(event.Type),
	})
}
