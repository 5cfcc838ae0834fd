// Package grpcclient provides a fluent builder for secure gRPC client connections and
// interceptors that apply an auth.Authenticator to outgoing metadata.
//
// It defaults to TLS 1.2+ using system roots to avoid accidental plaintext connections.
//
// # Features
//
//   - Unary interceptor: credentials in metadata, one refresh and one retry on codes.Unauthenticated
//   - Stream interceptor: credentials in metadata (streams are not retried)
//   - Builder with OAuth2 shorthand, shared Authenticator, custom CA and mTLS
//   - Additional dial options via WithDialOptions
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("server.example.com:9090").
//	    WithOAuth2(
//	        "https://auth.example.com/oauth/v2/token",
//	        "client-id",
//	        "client-secret",
//	        "openid profile",
//	    ).
//	    WithTLS("/path/to/ca.crt", "", "", "server.example.com").
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
// # TLS Behavior
//
// TLS is enabled by default with system CAs and TLS 1.2 minimum. WithTLS allows supplying a custom
// root CA and optional client cert/key for mTLS; both cert and key must be provided together.
package grpcclient
