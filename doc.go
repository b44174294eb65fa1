// Package gomerchant provides one card-processing API over many payment
// processors. Applications authorize, capture, void, credit and store cards
// through a single interface while each processor's wire protocol, signing
// and response codes stay inside its adapter.
//
// # Overview
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│   Your Apps     │◄──►│   GoMerchant    │◄──►│   Payment       │
//	│ (shop-1, ...)   │    │   (Gateway)     │    │   Processors    │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Supported Gateways
//
//   - Authorize.Net: AIM name/value protocol
//   - DataCash: XML requests with compound authorization tokens
//   - eWAY: XML direct payments, refunds with the refund password
//   - Moneris: XML API for Canadian merchants
//   - Payflow Pro: XMLPay with partner credentials
//   - PayPal Website Payments Pro: NVP DoDirectPayment
//   - Plug'n Pay: name/value POSTs with mark and newreturn modes
//   - PSiGate: XML messenger
//   - Sage Pay: VSP Direct with VendorTxCode tracking
//   - Stripe: charges, refunds, customers and signed webhooks
//   - TrustCommerce: name/value TCLink protocol
//   - Worldpay: XML order service
//   - Bogus: local test gateway that never leaves the process
//
// # Quick Start
//
//	import (
//	    "github.com/mstgnz/gomerchant/gateway"
//	    _ "github.com/mstgnz/gomerchant/gateway/all" // Import to register gateways
//	)
//
//	gw, err := gateway.New("stripe")
//	if err != nil {
//	    panic(err)
//	}
//	err = gw.Initialize(map[string]string{
//	    "secretKey":   "sk_test_...",
//	    "environment": "sandbox",
//	})
//
//	resp, err := gw.Purchase(ctx, 1000, &gateway.CreditCard{
//	    FirstName: "Longbob",
//	    LastName:  "Longsen",
//	    Number:    "4242424242424242",
//	    Month:     9,
//	    Year:      2030,
//	}, gateway.Options{OrderID: "1", Currency: "USD"})
//
// Amounts are integer minor units. A decline is a Response with Success false;
// errors mean the request never got a verdict.
//
// # Multi-Account Support
//
// gateway.Service resolves gateways per account from stored credentials, so
// several merchants can share one deployment:
//
//	PUT  /v1/accounts/shop-1/stripe            store credentials
//	POST /v1/accounts/shop-1/stripe/purchase   charge a card
//	POST /v1/accounts/shop-1/stripe/credit     refund
//
// Credentials live in SQLite, encrypted with CONFIG_ENCRYPTION_KEY. Every
// operation is written to the transaction log with card numbers masked; with
// ENABLE_OPENSEARCH_LOGGING it is also indexed per gateway in OpenSearch.
//
// # Running
//
//	gomerchant serve --env-file .env
//	gomerchant gateways --config
package gomerchant
