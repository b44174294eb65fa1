package eway

import "github.com/mstgnz/gomerchant/gateway"

// Register eWAY with the gateway registry
func init() {
	gateway.Register("eway", NewGateway)
}
