// Package handler provides the HTTP request handlers of the GoMerchant API.
//
// Handlers are plain http.HandlerFunc methods read with chi URL parameters and
// answer with the uniform envelope of the response package:
//
//	{"code":200,"success":true,"message":"...","data":{...}}
//
// # Handlers
//
//   - GatewayHandler: the catalogue of registered gateways and their config fields
//   - ConfigHandler: per-account gateway credentials, secrets masked on read
//   - PaymentHandler: purchase, authorize, capture, void, credit, store and unstore
//   - TransactionHandler: the transaction log and per-gateway statistics
//   - WebhookHandler: signature-verified processor notifications
//   - HealthHandler: storage, search, cache and system status
//
// # Operations
//
// Every card operation is a POST to the account's gateway:
//
//	POST /v1/accounts/shop-1/authorizenet/purchase
//	Authorization: Bearer your-api-key
//	Content-Type: application/json
//
//	{
//	  "amount": 1000,
//	  "card": {"firstName": "Longbob", "lastName": "Longsen",
//	           "number": "4242424242424242", "month": 9, "year": 2030},
//	  "options": {"orderId": "1", "currency": "USD"}
//	}
//
// Capture and void read "authorization"; credit and unstore read
// "identification" and fall back to "authorization".
//
// # HTTP Status Codes
//
//   - 200 OK: the processor approved the operation
//   - 400 Bad Request: invalid body, card or amount
//   - 402 Payment Required: the processor declined; data holds the gateway response
//   - 404 Not Found: unknown gateway, operation or account configuration
//   - 501 Not Implemented: the processor lacks the operation
//   - 502 Bad Gateway: the processor could not be reached or answered garbage
//   - 504 Gateway Timeout: the processor did not answer in time
package handler
