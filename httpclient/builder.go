package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/storage"
)

// Builder provides a fluent interface for constructing HTTP clients
// with an authentication strategy and TLS/mTLS support.
type Builder struct {
	// Authentication
	strategy      auth.Strategy
	authenticator *auth.Authenticator
	store         storage.Storage
	tokenClient   *http.Client

	// Request defaults
	baseURL string
	headers map[string]string
	onError func(error)
	logger  logrus.FieldLogger

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         30 * time.Second,
		followRedirects: true,
	}
}

// WithAuth sets the authentication strategy.
func (b *Builder) WithAuth(s auth.Strategy) *Builder {
	b.strategy = s
	return b
}

// WithAuthenticator uses an existing Authenticator, e.g. one shared with a gRPC client.
// It takes precedence over WithAuth and WithStorage.
func (b *Builder) WithAuthenticator(a *auth.Authenticator) *Builder {
	b.authenticator = a
	return b
}

// WithOAuth2 enables OAuth2 client credentials authentication.
//
// Parameters:
//   - tokenURL: OAuth2 token endpoint (e.g., "https://auth.example.com/oauth/v2/token")
//   - clientID: OAuth2 client identifier
//   - clientSecret: OAuth2 client secret (optional)
//   - scope: Space-separated list of OAuth2 scopes (e.g., "openid profile email")
func (b *Builder) WithOAuth2(tokenURL, clientID, clientSecret, scope string) *Builder {
	b.strategy = auth.OAuth2{OAuth2: &auth.OAuth2Descriptor{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        scope,
	}}
	return b
}

// WithStorage sets the token storage. Defaults to a fresh in-memory store.
func (b *Builder) WithStorage(store storage.Storage) *Builder {
	b.store = store
	return b
}

// WithTokenHTTPClient sets the HTTP client used for token endpoint exchanges.
func (b *Builder) WithTokenHTTPClient(hc *http.Client) *Builder {
	b.tokenClient = hc
	return b
}

// WithBaseURL sets the base URL of clients built with BuildResty.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.baseURL = baseURL
	return b
}

// WithHeaders sets static headers added to requests that do not carry them.
func (b *Builder) WithHeaders(headers map[string]string) *Builder {
	b.headers = headers
	return b
}

// WithOnError sets the error callback of clients built with BuildResty.
func (b *Builder) WithOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// WithLogger sets the logger for pipeline and token events.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
// TLS options are ignored when a base transport is set.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
func (b *Builder) Build() (*http.Client, error) {
	transport := b.baseTransport
	if transport == nil {
		base, err := b.buildBaseTransport()
		if err != nil {
			return nil, err
		}
		transport = base
	}

	a, err := b.buildAuthenticator()
	if err != nil {
		return nil, err
	}
	if a != nil {
		transport = NewTransport(a, transport,
			WithStaticHeaders(b.headers),
			WithTransportLogger(b.logger),
		)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// BuildResty constructs a resty client over the HTTP client from Build,
// with the configured base URL and error callback.
func (b *Builder) BuildResty() (*resty.Client, error) {
	hc, err := b.Build()
	if err != nil {
		return nil, err
	}
	return newRestyClient(hc, b.baseURL, b.onError, b.logger), nil
}

// buildAuthenticator returns nil when there is nothing to apply to requests.
func (b *Builder) buildAuthenticator() (*auth.Authenticator, error) {
	if b.authenticator != nil {
		return b.authenticator, nil
	}
	if b.strategy == nil && len(b.headers) == 0 {
		return nil, nil
	}

	store := b.store
	if store == nil {
		store = storage.NewMemory()
	}

	a, err := auth.New(b.strategy, store,
		auth.WithHTTPClient(b.tokenClient),
		auth.WithLogger(b.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return a, nil
}

func (b *Builder) buildBaseTransport() (http.RoundTripper, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// A test stub replaced the default transport; use it as is.
		return http.DefaultTransport, nil
	}

	transport := base.Clone()
	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	} else {
		transport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return transport, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Client certificate for mTLS requires both files.
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}
