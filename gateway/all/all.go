// Package all registers every bundled gateway adapter with gateway.DefaultRegistry.
//
//	import _ "github.com/mstgnz/gomerchant/gateway/all"
package all

import (
	_ "github.com/mstgnz/gomerchant/gateway/authorizenet"
	_ "github.com/mstgnz/gomerchant/gateway/bogus"
	_ "github.com/mstgnz/gomerchant/gateway/datacash"
	_ "github.com/mstgnz/gomerchant/gateway/eway"
	_ "github.com/mstgnz/gomerchant/gateway/moneris"
	_ "github.com/mstgnz/gomerchant/gateway/payflow"
	_ "github.com/mstgnz/gomerchant/gateway/paypal"
	_ "github.com/mstgnz/gomerchant/gateway/plugnpay"
	_ "github.com/mstgnz/gomerchant/gateway/psigate"
	_ "github.com/mstgnz/gomerchant/gateway/sagepay"
	_ "github.com/mstgnz/gomerchant/gateway/stripe"
	_ "github.com/mstgnz/gomerchant/gateway/trustcommerce"
	_ "github.com/mstgnz/gomerchant/gateway/worldpay"
)
