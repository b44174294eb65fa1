package stripe

import "github.com/mstgnz/gomerchant/gateway"

// Register Stripe with the gateway registry
func init() {
	gateway.Register("stripe", NewGateway)
}
