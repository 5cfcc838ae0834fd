// Package httpclient produces HTTP clients that authenticate every request.
//
// New and NewDefault return a resty client; Builder returns an *http.Client or a resty client
// with TLS/mTLS, timeout and redirect options. Both route requests through Transport, which runs
// a Pipeline of named stages around the base transport:
//
//   - static-headers: adds configured headers the request does not already carry
//   - authorize: sets the credential headers of the auth.Strategy
//   - refresh: on a 401 for an OAuth2 strategy, refreshes the token once and resends once
//
// # Features
//
//   - Bearer, OAuth2, API key and custom header strategies (see package auth)
//   - One refresh and one resend per request; the resend outcome is final
//   - A failed refresh clears both stored tokens and returns the original 401 response
//   - Request bodies are buffered when needed so they can be resent
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//   - OnError callback invoked by the client, never by the pipeline
//
// # Quick Start
//
//	client, err := httpclient.New(storage.NewMemory(), httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Auth: auth.OAuth2{OAuth2: &auth.OAuth2Descriptor{
//	        TokenURL: "https://auth.example.com/oauth/v2/token",
//	        ClientID: "client-id",
//	        ClientSecret: "client-secret",
//	    }},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.R().SetContext(ctx).Get("/data")
//
// # Builder
//
//	client, err := httpclient.NewBuilder().
//	    WithAuth(auth.Bearer{}).
//	    WithStorage(store).
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithTimeout(60 * time.Second).
//	    Build()
//
// All components are safe for concurrent use if the storage adapter is.
package httpclient
