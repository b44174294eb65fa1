package validate

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	orderIDRegex  = regexp.MustCompile(`^[A-Za-z0-9._:/-]{1,64}$`)
)

// CustomValidate registers the request rules shared by the API handlers:
//
//	currency  ISO 4217 alphabetic code, upper case ("USD")
//	orderid   up to 64 characters processors accept in a merchant reference
func CustomValidate(v *validator.Validate) {
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("orderid", func(fl validator.FieldLevel) bool {
		return orderIDRegex.MatchString(fl.Field().String())
	})
}
