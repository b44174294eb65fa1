package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/gomerchant/infra/logger"
)

// ConfigSource supplies the stored credentials of an account for one gateway
type ConfigSource interface {
	GetConfig(account, gatewayName string) (map[string]string, error)
}

// Service resolves configured gateways per account and records every call
type Service struct {
	registry *Registry
	configs  ConfigSource
	cache    InstanceCache
	txlog    TransactionLogger
	now      func() time.Time
}

// NewService creates a service; cache and txlog may be nil
func NewService(registry *Registry, configs ConfigSource, cache InstanceCache, txlog TransactionLogger) *Service {
	if registry == nil {
		registry = DefaultRegistry
	}
	if txlog == nil {
		txlog = NopLogger{}
	}
	return &Service{
		registry: registry,
		configs:  configs,
		cache:    cache,
		txlog:    txlog,
		now:      time.Now,
	}
}

// Registry returns the registry the service creates gateways from
func (s *Service) Registry() *Registry {
	return s.registry
}

// TransactionLogger returns the logger the service records calls with
func (s *Service) TransactionLogger() TransactionLogger {
	return s.txlog
}

// Gateway returns an initialized gateway for the account
func (s *Service) Gateway(account, gatewayName string) (Gateway, error) {
	gw, _, err := s.resolve(account, gatewayName)
	return gw, err
}

func (s *Service) resolve(account, gatewayName string) (Gateway, string, error) {
	if s.configs == nil {
		return nil, "", fmt.Errorf("%s: no configuration source", gatewayName)
	}
	config, err := s.configs.GetConfig(account, gatewayName)
	if err != nil {
		return nil, "", err
	}
	environment := config["environment"]

	if s.cache != nil {
		if gw := s.cache.Get(account, gatewayName, environment); gw != nil {
			return gw, environment, nil
		}
	}

	gw, err := s.registry.New(gatewayName)
	if err != nil {
		return nil, "", err
	}
	if err := gw.ValidateConfig(config); err != nil {
		return nil, "", err
	}
	if err := gw.Initialize(config); err != nil {
		return nil, "", fmt.Errorf("%s: failed to initialize: %w", gatewayName, err)
	}

	if s.cache != nil {
		s.cache.Set(account, gatewayName, environment, gw)
	}
	return gw, environment, nil
}

// Invalidate drops cached instances after the account's credentials change
func (s *Service) Invalidate(account, gatewayName string) {
	if s.cache != nil {
		s.cache.Delete(account, gatewayName)
	}
}

func (s *Service) Purchase(ctx context.Context, account, gatewayName string, money int64, card *CreditCard, opts Options) (*Response, error) {
	if err := checkCardPayment(gatewayName, money, card, opts); err != nil {
		return nil, err
	}
	entry := s.entry(account, gatewayName, OpPurchase, money, opts)
	entry.Card = card.Masked()
	return s.run(ctx, entry, func(gw Gateway) (*Response, error) {
		return gw.Purchase(ctx, money, card, opts)
	})
}

func (s *Service) Authorize(ctx context.Context, account, gatewayName string, money int64, card *CreditCard, opts Options) (*Response, error) {
	if err := checkCardPayment(gatewayName, money, card, opts); err != nil {
		return nil, err
	}
	entry := s.entry(account, gatewayName, OpAuthorize, money, opts)
	entry.Card = card.Masked()
	return s.run(ctx, entry, func(gw Gateway) (*Response, error) {
		return gw.Authorize(ctx, money, card, opts)
	})
}

func (s *Service) Capture(ctx context.Context, account, gatewayName string, money int64, authorization string, opts Options) (*Response, error) {
	if err := CheckAmount(money); err != nil {
		return nil, err
	}
	if authorization == "" {
		return nil, MissingField(gatewayName, "authorization")
	}
	entry := s.entry(account, gatewayName, OpCapture, money, opts)
	entry.Authorization = authorization
	return s.run(ctx, entry, func(gw Gateway) (*Response, error) {
		return gw.Capture(ctx, money, authorization, opts)
	})
}

func (s *Service) Void(ctx context.Context, account, gatewayName string, authorization string, opts Options) (*Response, error) {
	if authorization == "" {
		return nil, MissingField(gatewayName, "authorization")
	}
	entry := s.entry(account, gatewayName, OpVoid, 0, opts)
	entry.Authorization = authorization
	return s.run(ctx, entry, func(gw Gateway) (*Response, error) {
		return gw.Void(ctx, authorization, opts)
	})
}

func (s *Service) Credit(ctx context.Context, account, gatewayName string, money int64, identification string, opts Options) (*Response, error) {
	if err := CheckAmount(money); err != nil {
		return nil, err
	}
	entry := s.entry(account, gatewayName, OpCredit, money, opts)
	entry.Authorization = identification
	return s.run(ctx, entry, func(gw Gateway) (*Response, error) {
		return gw.Credit(ctx, money, identification, opts)
	})
}

func (s *Service) Store(ctx context.Context, account, gatewayName string, card *CreditCard, opts Options) (*Response, error) {
	if err := card.Validate(); err != nil {
		return nil, err
	}
	entry := s.entry(account, gatewayName, OpStore, 0, opts)
	entry.Card = card.Masked()
	return s.run(ctx, entry, func(gw Gateway) (*Response, error) {
		return gw.Store(ctx, card, opts)
	})
}

func (s *Service) Unstore(ctx context.Context, account, gatewayName string, identification string, opts Options) (*Response, error) {
	if identification == "" {
		return nil, MissingField(gatewayName, "identification")
	}
	entry := s.entry(account, gatewayName, OpUnstore, 0, opts)
	entry.Authorization = identification
	return s.run(ctx, entry, func(gw Gateway) (*Response, error) {
		return gw.Unstore(ctx, identification, opts)
	})
}

// checkCardPayment guards purchase and authorize; a stored BillingID stands
// in for the card
func checkCardPayment(gatewayName string, money int64, card *CreditCard, opts Options) error {
	if err := CheckAmount(money); err != nil {
		return err
	}
	if money == 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	if opts.BillingID != "" {
		return nil
	}
	if card == nil {
		return MissingField(gatewayName, "card")
	}
	return card.Validate()
}

func (s *Service) entry(account, gatewayName, op string, money int64, opts Options) TransactionEntry {
	return TransactionEntry{
		Account:   account,
		Gateway:   gatewayName,
		Operation: op,
		Amount:    money,
		Currency:  opts.Currency,
		OrderID:   opts.OrderID,
		ClientIP:  opts.IP,
	}
}

func (s *Service) run(ctx context.Context, entry TransactionEntry, call func(Gateway) (*Response, error)) (*Response, error) {
	gw, environment, err := s.resolve(entry.Account, entry.Gateway)
	if err != nil {
		return nil, err
	}
	entry.Environment = environment

	logCtx := logger.LogContext{Account: entry.Account, Gateway: entry.Gateway}

	start := s.now()
	logID, err := s.txlog.LogRequest(ctx, entry)
	if err != nil {
		logCtx.Fields = map[string]any{"operation": entry.Operation, "error": err.Error()}
		logger.Warn("Failed to log gateway request", logCtx)
	}

	resp, callErr := call(gw)
	processingMs := s.now().Sub(start).Milliseconds()

	if logID != "" {
		if callErr != nil {
			logErr := s.txlog.LogError(ctx, logID, errorCode(callErr), callErr.Error(), processingMs)
			if logErr != nil {
				logCtx.Fields = map[string]any{"log_id": logID, "error": logErr.Error()}
				logger.Warn("Failed to log gateway error", logCtx)
			}
		} else if logErr := s.txlog.LogResponse(ctx, logID, resp, processingMs); logErr != nil {
			logCtx.Fields = map[string]any{"log_id": logID, "error": logErr.Error()}
			logger.Warn("Failed to log gateway response", logCtx)
		}
	}

	if callErr != nil {
		if resp == nil || resp.Authorization == "" {
			return nil, callErr
		}
		// a multi-step operation failed after the processor accepted an earlier step
		logCtx.Fields = map[string]any{"operation": entry.Operation, "authorization": resp.Authorization, "error": callErr.Error()}
		logger.Warn("Gateway operation failed with a pending authorization", logCtx)
		return resp, callErr
	}
	return resp, nil
}

// errorCode classifies an operation error for transaction logs
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotSupported):
		return "NOT_SUPPORTED"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, ErrConnection):
		return "CONNECTION_ERROR"
	case errors.Is(err, ErrResponse):
		return "RESPONSE_ERROR"
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidField),
		errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidCard):
		return "INVALID_REQUEST"
	default:
		return "GATEWAY_ERROR"
	}
}
