package authorizenet

import "github.com/mstgnz/gomerchant/gateway"

// Register Authorize.Net with the gateway registry
func init() {
	gateway.Register("authorizenet", NewGateway)
}
