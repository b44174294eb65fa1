package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/mstgnz/gomerchant/infra/logger"
	"github.com/mstgnz/gomerchant/infra/middle"
	"github.com/mstgnz/gomerchant/infra/response"
)

const operationTimeout = 2 * time.Minute

// PaymentService is the per-account operation surface of gateway.Service
type PaymentService interface {
	Purchase(ctx context.Context, account, gatewayName string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error)
	Authorize(ctx context.Context, account, gatewayName string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error)
	Capture(ctx context.Context, account, gatewayName string, money int64, authorization string, opts gateway.Options) (*gateway.Response, error)
	Void(ctx context.Context, account, gatewayName string, authorization string, opts gateway.Options) (*gateway.Response, error)
	Credit(ctx context.Context, account, gatewayName string, money int64, identification string, opts gateway.Options) (*gateway.Response, error)
	Store(ctx context.Context, account, gatewayName string, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error)
	Unstore(ctx context.Context, account, gatewayName string, identification string, opts gateway.Options) (*gateway.Response, error)
}

// OperationRequest is the body of every operation endpoint; which fields
// are read depends on the operation
type OperationRequest struct {
	Amount         int64               `json:"amount" validate:"gte=0"`
	Card           *gateway.CreditCard `json:"card,omitempty"`
	Authorization  string              `json:"authorization,omitempty" validate:"max=512"`
	Identification string              `json:"identification,omitempty" validate:"max=512"`
	Options        gateway.Options     `json:"options"`
}

// PaymentHandler handles card operation HTTP requests
type PaymentHandler struct {
	service  PaymentService
	registry *gateway.Registry
	validate *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service PaymentService, registry *gateway.Registry, validate *validator.Validate) *PaymentHandler {
	if registry == nil {
		registry = gateway.DefaultRegistry
	}
	return &PaymentHandler{
		service:  service,
		registry: registry,
		validate: validate,
	}
}

// Operation runs the operation named in the URL against the account's gateway
func (h *PaymentHandler) Operation(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	gatewayName := chi.URLParam(r, "gateway")
	operation := chi.URLParam(r, "operation")

	if _, err := h.registry.Get(gatewayName); err != nil {
		response.Error(w, http.StatusNotFound, "Unknown gateway", err)
		return
	}

	var req OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}
	if req.Options.IP == "" {
		req.Options.IP = middle.GetClientIP(r)
	}

	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()

	var (
		resp *gateway.Response
		err  error
	)
	switch operation {
	case gateway.OpPurchase:
		resp, err = h.service.Purchase(ctx, account, gatewayName, req.Amount, req.Card, req.Options)
	case gateway.OpAuthorize:
		resp, err = h.service.Authorize(ctx, account, gatewayName, req.Amount, req.Card, req.Options)
	case gateway.OpCapture:
		resp, err = h.service.Capture(ctx, account, gatewayName, req.Amount, req.Authorization, req.Options)
	case gateway.OpVoid:
		resp, err = h.service.Void(ctx, account, gatewayName, req.Authorization, req.Options)
	case gateway.OpCredit:
		resp, err = h.service.Credit(ctx, account, gatewayName, req.Amount, req.identification(), req.Options)
	case gateway.OpStore:
		resp, err = h.service.Store(ctx, account, gatewayName, req.Card, req.Options)
	case gateway.OpUnstore:
		resp, err = h.service.Unstore(ctx, account, gatewayName, req.identification(), req.Options)
	default:
		response.Error(w, http.StatusNotFound, "Unknown operation", errors.New("operation must be one of purchase, authorize, capture, void, credit, store, unstore"))
		return
	}

	if err != nil {
		status := operationErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Gateway operation failed", err, logger.LogContext{
				Account:   account,
				Gateway:   gatewayName,
				RequestID: middle.GetRequestID(r.Context()),
				Fields:    map[string]any{"operation": operation},
			})
		}
		if resp != nil {
			_ = response.WriteJSON(w, status, response.Response{
				Code:    status,
				Message: "Operation failed",
				Error:   err.Error(),
				Data:    resp,
			})
			return
		}
		response.Error(w, status, "Operation failed", err)
		return
	}

	if !resp.Success {
		response.ErrorWithData(w, http.StatusPaymentRequired, resp.Message, resp)
		return
	}
	response.Success(w, http.StatusOK, resp.Message, resp)
}

// identification falls back to the authorization so clients can send
// whichever token they kept
func (r OperationRequest) identification() string {
	if r.Identification != "" {
		return r.Identification
	}
	return r.Authorization
}

func operationErrorStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, config.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, gateway.ErrMissingField),
		errors.Is(err, gateway.ErrInvalidField),
		errors.Is(err, gateway.ErrInvalidAmount),
		errors.Is(err, gateway.ErrInvalidCard):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrConnection),
		errors.Is(err, gateway.ErrResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
