package bogus

import "github.com/mstgnz/gomerchant/gateway"

// Register the bogus gateway with the gateway registry
func init() {
	gateway.Register("bogus", NewGateway)
}
