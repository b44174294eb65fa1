package sagepay

import "github.com/mstgnz/gomerchant/gateway"

// Register Sage Pay with the gateway registry
func init() {
	gateway.Register("sagepay", NewGateway)
}
