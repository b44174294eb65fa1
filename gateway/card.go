package gateway

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Card brands
const (
	BrandVisa               = "visa"
	BrandMaster             = "master"
	BrandDiscover           = "discover"
	BrandAmericanExpress    = "american_express"
	BrandDinersClub         = "diners_club"
	BrandJCB                = "jcb"
	BrandSwitch             = "switch"
	BrandSolo               = "solo"
	BrandDankort            = "dankort"
	BrandForbrugsforeningen = "forbrugsforeningen"
	BrandLaser              = "laser"
	BrandMaestro            = "maestro"
	BrandBogus              = "bogus"
)

type brandPattern struct {
	brand   string
	pattern *regexp.Regexp
}

// checked in order, narrower prefixes before the broad maestro range
var brandPatterns = []brandPattern{
	{BrandVisa, regexp.MustCompile(`^4\d{12}(\d{3})?(\d{3})?$`)},
	{BrandMaster, regexp.MustCompile(`^(5[1-5]\d{4}|677189|222[1-9]\d{2}|22[3-9]\d{3}|2[3-6]\d{4}|27[01]\d{3}|2720\d{2})\d{10}$`)},
	{BrandDiscover, regexp.MustCompile(`^((6011|65\d{2}|64[4-9]\d)\d{12}|62\d{14})$`)},
	{BrandAmericanExpress, regexp.MustCompile(`^3[47]\d{13}$`)},
	{BrandDinersClub, regexp.MustCompile(`^3(0[0-5]|[68]\d)\d{11}$`)},
	{BrandJCB, regexp.MustCompile(`^35(28|29|[3-8]\d)\d{12}$`)},
	{BrandSwitch, regexp.MustCompile(`^6759\d{12}(\d{2,3})?$`)},
	{BrandSolo, regexp.MustCompile(`^6767\d{12}(\d{2,3})?$`)},
	{BrandDankort, regexp.MustCompile(`^5019\d{12}$`)},
	{BrandForbrugsforeningen, regexp.MustCompile(`^600722\d{10}$`)},
	{BrandLaser, regexp.MustCompile(`^(6304|6706|6709|6771)\d{8}(\d{4}|\d{6,7})?$`)},
	{BrandMaestro, regexp.MustCompile(`^(5[06-8]|6\d)\d{10,17}$`)},
}

var cardValidate = newCardValidator()

func newCardValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("luhn", func(fl validator.FieldLevel) bool {
		return ValidLuhn(fl.Field().String())
	})
	return v
}

// CreditCard holds the cardholder data sent to processors
type CreditCard struct {
	FirstName         string `json:"firstName" validate:"required"`
	LastName          string `json:"lastName" validate:"required"`
	Number            string `json:"number" validate:"required"`
	Month             int    `json:"month" validate:"min=1,max=12"`
	Year              int    `json:"year" validate:"min=1000,max=9999"`
	VerificationValue string `json:"verificationValue,omitempty" validate:"omitempty,numeric,min=3,max=4"`
	Brand             string `json:"brand,omitempty"`
}

// Name returns the cardholder's full name
func (c *CreditCard) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Digits returns the card number without spaces or dashes
func (c *CreditCard) Digits() string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, c.Number)
}

// LastDigits returns the last four digits of the number
func (c *CreditCard) LastDigits() string {
	d := c.Digits()
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}

// DisplayNumber masks everything but the last four digits
func (c *CreditCard) DisplayNumber() string {
	return "XXXX-XXXX-XXXX-" + c.LastDigits()
}

// DetectedBrand returns the explicit brand or the one derived from the number
func (c *CreditCard) DetectedBrand() string {
	if c.Brand != "" {
		return c.Brand
	}
	return BrandOf(c.Digits())
}

// ExpiryMMYY formats the expiry as "0930"
func (c *CreditCard) ExpiryMMYY() string {
	return fmt.Sprintf("%02d%02d", c.Month, c.Year%100)
}

// ExpiryMMYYYY formats the expiry as "092030"
func (c *CreditCard) ExpiryMMYYYY() string {
	return fmt.Sprintf("%02d%04d", c.Month, c.Year)
}

// ExpiryYYMM formats the expiry as "3009"
func (c *CreditCard) ExpiryYYMM() string {
	return fmt.Sprintf("%02d%02d", c.Year%100, c.Month)
}

// Expired reports whether the card is past the end of its expiry month
func (c *CreditCard) Expired(now time.Time) bool {
	end := time.Date(c.Year, time.Month(c.Month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(end)
}

// Validate checks the card fields, number checksum, brand and expiry
func (c *CreditCard) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: card is required", ErrInvalidCard)
	}
	if err := cardValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed '%s'", ErrInvalidCard, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}

	brand := c.DetectedBrand()
	if brand == "" || !KnownBrand(brand) {
		return fmt.Errorf("%w: unrecognised card brand %q", ErrInvalidCard, brand)
	}
	// bogus test numbers are not real PANs
	if brand != BrandBogus {
		if err := cardValidate.Var(c.Digits(), "luhn"); err != nil {
			return fmt.Errorf("%w: number fails checksum", ErrInvalidCard)
		}
	}
	if c.Expired(time.Now()) {
		return fmt.Errorf("%w: card expired %02d/%d", ErrInvalidCard, c.Month, c.Year)
	}
	return nil
}

// Masked returns a copy safe for logs
func (c *CreditCard) Masked() map[string]string {
	if c == nil {
		return nil
	}
	return map[string]string{
		"name":   c.Name(),
		"number": c.DisplayNumber(),
		"brand":  c.DetectedBrand(),
		"expiry": strconv.Itoa(c.Month) + "/" + strconv.Itoa(c.Year),
	}
}

// KnownBrand reports whether brand is one of the Brand constants
func KnownBrand(brand string) bool {
	if brand == BrandBogus {
		return true
	}
	for _, bp := range brandPatterns {
		if bp.brand == brand {
			return true
		}
	}
	return false
}

// BrandOf classifies a card number by prefix and length
func BrandOf(number string) string {
	for _, bp := range brandPatterns {
		if bp.pattern.MatchString(number) {
			return bp.brand
		}
	}
	return ""
}

// ValidLuhn verifies the mod-10 checksum of a digit string
func ValidLuhn(number string) bool {
	if len(number) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		ch := number[i]
		if ch < '0' || ch > '9' {
			return false
		}
		d := int(ch - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
