package bogus

import (
	"context"
	"fmt"

	"github.com/mstgnz/gomerchant/gateway"
)

const (
	authorizationToken = "53433"

	successMessage = "Bogus Gateway: Forced success"
	failureMessage = "Bogus Gateway: Forced failure"

	cardNumberError = "bogus: use card number 1 for success, 2 for failure and anything else for error"
	referenceError  = "bogus: use authorization 1 for error, 2 for failure and anything else for success"
	unstoreError    = "bogus: use billing id 1 for success, 2 for failure and anything else for error"
)

// BogusGateway answers locally without talking to any processor
type BogusGateway struct {
	isProduction bool
}

// NewGateway creates a new bogus gateway
func NewGateway() gateway.Gateway {
	return &BogusGateway{}
}

func (g *BogusGateway) Name() string {
	return "bogus"
}

func (g *BogusGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "bogus",
		DisplayName:        "Bogus",
		Homepage:           "http://example.com",
		SupportedCountries: []string{"US"},
		SupportedBrands:    []string{gateway.BrandBogus},
		DefaultCurrency:    "USD",
		MoneyFormat:        gateway.MoneyCents,
	}
}

func (g *BogusGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{gateway.EnvironmentField()}
}

func (g *BogusGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *BogusGateway) Initialize(config map[string]string) error {
	g.isProduction = gateway.IsProduction(config)
	return nil
}

func (g *BogusGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardResponse(money, card, map[string]string{"authorized_amount": gateway.FormatAmount(money, gateway.MoneyCents)})
}

func (g *BogusGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardResponse(money, card, map[string]string{"paid_amount": gateway.FormatAmount(money, gateway.MoneyCents)})
}

func (g *BogusGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	return g.referenceResponse(authorization, map[string]string{"paid_amount": gateway.FormatAmount(money, gateway.MoneyCents)})
}

func (g *BogusGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	return g.referenceResponse(authorization, map[string]string{"authorization": authorization})
}

func (g *BogusGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	return g.referenceResponse(identification, map[string]string{"paid_amount": gateway.FormatAmount(money, gateway.MoneyCents)})
}

func (g *BogusGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	switch card.Number {
	case "1":
		resp := g.response(true, successMessage, map[string]string{"billingid": "1"})
		resp.Authorization = "1"
		return resp, nil
	case "2":
		return g.response(false, failureMessage, map[string]string{"billingid": ""}), nil
	default:
		return nil, fmt.Errorf("%s: %w", cardNumberError, gateway.ErrInvalidCard)
	}
}

func (g *BogusGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	switch identification {
	case "1":
		return g.response(true, successMessage, nil), nil
	case "2":
		return g.response(false, failureMessage, nil), nil
	default:
		return nil, fmt.Errorf("%s: %w", unstoreError, gateway.ErrResponse)
	}
}

func (g *BogusGateway) cardResponse(money int64, card *gateway.CreditCard, params map[string]string) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	switch card.Number {
	case "1":
		resp := g.response(true, successMessage, params)
		resp.Authorization = authorizationToken
		return resp, nil
	case "2":
		resp := g.response(false, failureMessage, params)
		resp.ErrorCode = "card_declined"
		return resp, nil
	default:
		return nil, fmt.Errorf("%s: %w", cardNumberError, gateway.ErrInvalidCard)
	}
}

func (g *BogusGateway) referenceResponse(reference string, params map[string]string) (*gateway.Response, error) {
	switch reference {
	case "1":
		return nil, fmt.Errorf("%s: %w", referenceError, gateway.ErrResponse)
	case "2":
		return g.response(false, failureMessage, params), nil
	default:
		return g.response(true, successMessage, params), nil
	}
}

func (g *BogusGateway) response(success bool, message string, params map[string]string) *gateway.Response {
	resp := gateway.NewResponse(success, message, params)
	resp.Test = true
	return resp
}
