package payflow

import "github.com/mstgnz/gomerchant/gateway"

// Register Payflow Pro with the gateway registry
func init() {
	gateway.Register("payflow", NewGateway)
}
