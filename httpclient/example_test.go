package httpclient_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/httpclient"
	"github.com/AmmannChristian/go-authclient/storage"
)

// Example demonstrates a client authenticating with a stored bearer token.
func Example() {
	store := storage.NewMemory()
	_ = store.SetItem(context.Background(), "access", "my-token")

	client, err := httpclient.New(store, httpclient.Config{
		BaseURL: "https://api.example.com",
		Auth:    auth.Bearer{TokenKey: "access"},
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Client base URL: %s\n", client.BaseURL)
	// Output: Client base URL: https://api.example.com
}

// ExampleNewDefault demonstrates the convenience constructor with in-memory storage.
func ExampleNewDefault() {
	client, err := httpclient.NewDefault(httpclient.Config{
		Auth: auth.APIKey{Key: "secret", Header: "X-API-Key"},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Client base URL: %s\n", client.BaseURL)
	// Output: Client base URL: https://api.example.com
}

// ExampleNew_oauth2 demonstrates OAuth2 client credentials with refresh on 401.
func ExampleNew_oauth2() {
	_, err := httpclient.New(storage.NewMemory(), httpclient.Config{
		Auth: auth.OAuth2{
			OAuth2: &auth.OAuth2Descriptor{
				TokenURL:     "https://auth.example.com/oauth/v2/token",
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				Scope:        "openid profile",
			},
		},
		OnError: func(err error) { log.Println(err) },
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("OAuth2 authentication configured")
	// Output: OAuth2 authentication configured
}

// ExampleNewBuilder demonstrates using the builder pattern for HTTP clients.
func ExampleNewBuilder() {
	client, err := httpclient.NewBuilder().
		WithOAuth2("https://auth.example.com/oauth/v2/token", "client-id", "secret", "openid").
		WithTimeout(60 * time.Second).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Client configured with timeout: %v\n", client.Timeout)
	// Output: Client configured with timeout: 1m0s
}

// ExampleBuilder_WithTLS demonstrates TLS configuration.
func ExampleBuilder_WithTLS() {
	_, err := httpclient.NewBuilder().
		WithAuth(auth.Bearer{}).
		WithTLS(
			"/path/to/ca.crt",     // CA certificate
			"/path/to/client.crt", // Client certificate (optional)
			"/path/to/client.key", // Client key (optional)
		).
		Build()
	if err != nil {
		// The files do not exist here.
		fmt.Println("TLS configuration attempted")
		return
	}

	fmt.Println("TLS configured")
	// Output: TLS configuration attempted
}

// ExampleBuilder_BuildResty demonstrates building a resty client.
func ExampleBuilder_BuildResty() {
	client, err := httpclient.NewBuilder().
		WithBaseURL("https://api.example.com/v1").
		WithAuth(auth.Custom{Header: "X-Tenant", Value: "acme"}).
		BuildResty()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(client.BaseURL)
	// Output: https://api.example.com/v1
}

// ExampleNewTransport demonstrates wrapping a transport manually.
func ExampleNewTransport() {
	a, err := auth.New(auth.Bearer{}, storage.NewMemory())
	if err != nil {
		log.Fatal(err)
	}

	transport := httpclient.NewTransport(a, nil,
		httpclient.WithStaticHeaders(map[string]string{"User-Agent": "example/1.0"}))

	fmt.Println(transport.Pipeline().Stages())
	// Output: [static-headers authorize refresh]
}
