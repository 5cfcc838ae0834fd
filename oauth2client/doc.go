// Package oauth2client performs OAuth2 token endpoint exchanges.
//
// Client sends form-encoded client_credentials and refresh_token exchanges and returns the
// decoded JSON body as a Payload, untouched. It keeps no token state: caching, persistence and
// refresh policy belong to the auth package, which calls Client through a small interface.
//
// # Features
//
//   - client_credentials with optional client_secret and scope
//   - refresh_token with optional client_secret (scope is never sent)
//   - Endpoint rejections surface as *oauth2.RetrieveError
//   - Payload.Token converts to *oauth2.Token for x/oauth2 consumers
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	client := oauth2client.NewClient(oauth2client.Config{
//	    TokenURL:     "https://auth.example.com/oauth/v2/token",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    Scope:        "openid profile",
//	}, oauth2client.WithLoggingEnabled())
//
//	payload, err := client.ClientCredentials(ctx)
//	if err != nil {
//	    var rerr *oauth2.RetrieveError
//	    if errors.As(err, &rerr) {
//	        log.Printf("rejected: %s", rerr.ErrorCode)
//	    }
//	    return err
//	}
//	fmt.Println(payload.AccessToken())
//
// # Notes
//
//   - authorization_code is a recognized grant name but is not exchanged (ErrUnsupportedGrant).
//   - The HTTP client given to WithHTTPClient must not run the API client's auth pipeline.
package oauth2client
