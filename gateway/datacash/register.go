package datacash

import "github.com/mstgnz/gomerchant/gateway"

// Register DataCash with the gateway registry
func init() {
	gateway.Register("datacash", NewGateway)
}
