// Package testutil provides test helpers for go-authclient packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock OAuth2 token endpoints without real sockets, and generate self-signed certificates for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1 (closed via tb.Cleanup)
//   - MockOAuth2Server: stub token endpoint that records requests and decoded form bodies
//   - StaticJSONResponse / JSONResponse / TextResponse: canned responses for RoundTripFunc stubs
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
//
// The mock server never touches http.DefaultClient or http.DefaultTransport; pass HTTPClient()
// to the component under test instead.
package testutil
