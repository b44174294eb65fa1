package paypal

import "github.com/mstgnz/gomerchant/gateway"

// Register PayPal Website Payments Pro with the gateway registry
func init() {
	gateway.Register("paypal", NewGateway)
}
