// Package api implements the HTTP API of the storefront auth service.
//
// This package provides:
//   - registration, OTP verification, login, logout and profile routes per
//     principal kind (super-admin, admin, retailer, customer)
//   - the session gate (authorize) that reads tokens from cookies or the
//     Authorization header and enforces token class and role
//   - the x-api-key gate in front of every route
//   - the super-admin audit trail listing
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Responses
//
// Every body is the envelope {"status", "message", "data"}. Tokens are
// only ever delivered as httpOnly cookies: act (access), rft (refresh) and
// temp (pre-auth). Gate failures before the role check share one 401 body
// so the cause is never revealed.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
