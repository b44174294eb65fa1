package plugnpay

import "github.com/mstgnz/gomerchant/gateway"

// Register Plug'n Pay with the gateway registry
func init() {
	gateway.Register("plugnpay", NewGateway)
}
