package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are always integer minor units (cents), including for
// currencies without a fractional part where the last two digits are rounded away.

var nonFractionalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true,
	"JPY": true, "KMF": true, "KRW": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// CurrencyExponent returns the number of decimal places used by a currency
func CurrencyExponent(currency string) int {
	if nonFractionalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// CheckAmount rejects negative amounts
func CheckAmount(money int64) error {
	if money < 0 {
		return fmt.Errorf("%w: %d is negative", ErrInvalidAmount, money)
	}
	return nil
}

// FormatAmount renders cents the way a processor expects them
func FormatAmount(money int64, format MoneyFormat) string {
	if format == MoneyCents {
		return strconv.FormatInt(money, 10)
	}
	return decimal.New(money, -2).StringFixed(2)
}

// LocalizedAmount renders cents using the currency's exponent
func LocalizedAmount(money int64, currency string) string {
	if CurrencyExponent(currency) == 0 {
		return decimal.New(money, -2).Round(0).StringFixed(0)
	}
	return decimal.New(money, -2).StringFixed(2)
}

// ParseAmount converts a decimal string such as "10.50" into cents
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
