// Package gateway defines the uniform card-processing interface shared by every
// payment processor adapter, together with the types, helpers and services the
// adapters are built from.
//
// # Core Concepts
//
//   - Gateway: the interface every adapter implements (purchase, authorize,
//     capture, void, credit, store, unstore)
//   - CreditCard, Address, Options: the inputs of every operation
//   - Response: the normalized result with AVSResult and CVVResult
//   - Registry: adapter factories by name, filled from each adapter's init()
//   - Service: per-account gateway resolution, instance caching and
//     transaction logging
//
// # Basic Usage
//
//	import (
//	    "github.com/mstgnz/gomerchant/gateway"
//	    _ "github.com/mstgnz/gomerchant/gateway/all"
//	)
//
//	gw, err := gateway.New("authorizenet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = gw.Initialize(map[string]string{
//	    "login":       "api-login-id",
//	    "password":    "transaction-key",
//	    "environment": "sandbox",
//	})
//
//	card := &gateway.CreditCard{
//	    FirstName: "Longbob",
//	    LastName:  "Longsen",
//	    Number:    "4242424242424242",
//	    Month:     9,
//	    Year:      2030,
//	}
//	resp, err := gw.Purchase(ctx, 1000, card, gateway.Options{OrderID: "1"})
//
// Amounts are always integer minor units (cents). A declined transaction is a
// Response with Success false; errors are reserved for invalid input,
// unsupported operations and transport or parse failures:
//
//	switch {
//	case errors.Is(err, gateway.ErrNotSupported):
//	case errors.Is(err, gateway.ErrConnection):
//	case err == nil && !resp.Success:
//	    fmt.Println(resp.ErrorCode, resp.Message)
//	}
//
// # Authorization Tokens
//
// The Authorization of a Response is whatever the processor needs to refer to
// the transaction later. Some adapters pack several identifiers into one
// token separated by ';' (DataCash, Moneris, Sage Pay); treat the value as
// opaque and hand it back to Capture, Void or Credit unchanged.
//
// # Multi-Account Usage
//
// Service resolves gateways from a ConfigSource keyed by account, keeps
// initialized instances in an InstanceCache and writes every call to a
// TransactionLogger with card numbers masked:
//
//	svc := gateway.NewService(nil, configs, gateway.NewLRUCache(100, time.Hour), txlog)
//	resp, err := svc.Purchase(ctx, "shop-1", "stripe", 1000, card, opts)
package gateway
