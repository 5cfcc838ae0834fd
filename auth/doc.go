// Package auth decides which credential an outgoing request carries and how
// OAuth2 tokens are acquired and refreshed.
//
// A Strategy is one of Bearer, OAuth2, APIKey or Custom, each carrying only the
// fields valid for it. An Authenticator binds a Strategy to a storage.Storage and
// is shared by the HTTP and gRPC clients.
//
// # Features
//
//   - Bearer: stored token as "Authorization: Bearer <token>"
//   - OAuth2: stored token, acquired from the token endpoint when absent
//   - OAuth2 refresh: one refresh_token exchange after a rejection; failure clears both tokens
//   - APIKey / Custom: static header, sent only when fully configured
//   - Concurrent acquisitions and refreshes share one exchange (singleflight)
//   - oauth2.TokenSource adapter for x/oauth2 consumers
//
// # Quick Start
//
//	store := storage.NewMemory()
//	a, err := auth.New(auth.OAuth2{
//	    OAuth2: &auth.OAuth2Descriptor{
//	        TokenURL:     "https://auth.example.com/oauth/v2/token",
//	        ClientID:     "client-id",
//	        ClientSecret: "client-secret",
//	        Scope:        "openid profile",
//	    },
//	}, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h := make(http.Header)
//	if err := a.Authorize(ctx, h); err != nil {
//	    log.Fatal(err)
//	}
//
// Tokens are stored as two entries, the access token under TokenKey (default
// "access") and the refresh token under RefreshTokenKey (default "refresh_token").
// They are never inspected: expiry is discovered by the server rejecting them.
package auth
