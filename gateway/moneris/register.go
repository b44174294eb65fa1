package moneris

import "github.com/mstgnz/gomerchant/gateway"

// Register Moneris with the gateway registry
func init() {
	gateway.Register("moneris", NewGateway)
}
