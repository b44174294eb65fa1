package psigate

import "github.com/mstgnz/gomerchant/gateway"

// Register PSiGate with the gateway registry
func init() {
	gateway.Register("psigate", NewGateway)
}
