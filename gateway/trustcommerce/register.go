package trustcommerce

import "github.com/mstgnz/gomerchant/gateway"

// Register TrustCommerce with the gateway registry
func init() {
	gateway.Register("trustcommerce", NewGateway)
}
