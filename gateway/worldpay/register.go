package worldpay

import "github.com/mstgnz/gomerchant/gateway"

// Register Worldpay with the gateway registry
func init() {
	gateway.Register("worldpay", NewGateway)
}
