package gateway

import (
	"context"
	"strings"
)

// Environments accepted by every gateway configuration
const (
	EnvSandbox    = "sandbox"
	EnvTest       = "test"
	EnvProduction = "production"
)

// Operation names used for logging and HTTP routing
const (
	OpPurchase  = "purchase"
	OpAuthorize = "authorize"
	OpCapture   = "capture"
	OpVoid      = "void"
	OpCredit    = "credit"
	OpStore     = "store"
	OpUnstore   = "unstore"
)

// MoneyFormat tells how a processor expects amounts on the wire
type MoneyFormat string

const (
	MoneyDollars MoneyFormat = "dollars" // "10.00"
	MoneyCents   MoneyFormat = "cents"   // "1000"
)

// Info describes a gateway for listings and documentation
type Info struct {
	Name               string      `json:"name"`
	DisplayName        string      `json:"displayName"`
	Homepage           string      `json:"homepage"`
	SupportedCountries []string    `json:"supportedCountries"`
	SupportedBrands    []string    `json:"supportedBrands"`
	DefaultCurrency    string      `json:"defaultCurrency"`
	MoneyFormat        MoneyFormat `json:"moneyFormat"`
}

// SupportsBrand reports whether the gateway accepts the given card brand
func (i Info) SupportsBrand(brand string) bool {
	for _, b := range i.SupportedBrands {
		if b == brand {
			return true
		}
	}
	return false
}

// Address represents a billing or shipping address
type Address struct {
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Street joins both address lines
func (a *Address) Street() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(strings.Join([]string{a.Address1, a.Address2}, " "))
}

// Options carries the per-transaction context passed to every operation
type Options struct {
	OrderID         string            `json:"orderId,omitempty" validate:"omitempty,orderid"`
	Description     string            `json:"description,omitempty"`
	Email           string            `json:"email,omitempty" validate:"omitempty,email"`
	Customer        string            `json:"customer,omitempty"`
	IP              string            `json:"ip,omitempty" validate:"omitempty,ip"`
	Invoice         string            `json:"invoice,omitempty"`
	Currency        string            `json:"currency,omitempty" validate:"omitempty,currency"`
	BillingAddress  *Address          `json:"billingAddress,omitempty"`
	ShippingAddress *Address          `json:"shippingAddress,omitempty"`
	BillingID       string            `json:"billingId,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CurrencyOr returns the requested currency or the given default
func (o Options) CurrencyOr(def string) string {
	if o.Currency != "" {
		return strings.ToUpper(o.Currency)
	}
	return def
}

// Address returns the billing address, falling back to the shipping address
func (o Options) Address() *Address {
	if o.BillingAddress != nil {
		return o.BillingAddress
	}
	return o.ShippingAddress
}

// Gateway is implemented by every payment processor adapter
type Gateway interface {
	// Name returns the registry name of the gateway
	Name() string

	// Info describes the processor
	Info() Info

	// GetRequiredConfig returns the configuration fields the gateway reads
	GetRequiredConfig() []ConfigField

	// ValidateConfig checks a configuration against GetRequiredConfig
	ValidateConfig(config map[string]string) error

	// Initialize sets credentials and selects the live or test endpoint
	Initialize(config map[string]string) error

	// Purchase authorizes and captures money in one step
	Purchase(ctx context.Context, money int64, card *CreditCard, opts Options) (*Response, error)

	// Authorize reserves money on the card without capturing it
	Authorize(ctx context.Context, money int64, card *CreditCard, opts Options) (*Response, error)

	// Capture settles a previous authorization
	Capture(ctx context.Context, money int64, authorization string, opts Options) (*Response, error)

	// Void cancels a previous authorization or unsettled purchase
	Void(ctx context.Context, authorization string, opts Options) (*Response, error)

	// Credit returns money for a previous purchase
	Credit(ctx context.Context, money int64, identification string, opts Options) (*Response, error)

	// Store saves the card at the processor and returns a reusable billing id
	Store(ctx context.Context, card *CreditCard, opts Options) (*Response, error)

	// Unstore removes a stored card
	Unstore(ctx context.Context, identification string, opts Options) (*Response, error)
}

// Factory creates a new, uninitialized gateway
type Factory func() Gateway
