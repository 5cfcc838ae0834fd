package grpcclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/storage"
)

// Builder provides a fluent interface for constructing gRPC client connections
// with an authentication strategy and TLS/mTLS support.
type Builder struct {
	address string

	// Authentication
	strategy      auth.Strategy
	authenticator *auth.Authenticator
	store         storage.Storage
	tokenClient   *http.Client
	logger        logrus.FieldLogger

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
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

// WithAuth sets the authentication strategy.
func (b *Builder) WithAuth(s auth.Strategy) *Builder {
	b.strategy = s
	return b
}

// WithAuthenticator uses an existing Authenticator, e.g. one shared with an HTTP client.
// It takes precedence over WithAuth and WithOAuth2.
func (b *Builder) WithAuthenticator(a *auth.Authenticator) *Builder {
	b.authenticator = a
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

// WithLogger sets the logger for token events.
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
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after authentication and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection with the configured options.
// The context is accepted for symmetry with dialing APIs; grpc.NewClient connects lazily.
func (b *Builder) Build(_ context.Context) (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}

	var opts []grpc.DialOption

	a, err := b.buildAuthenticator()
	if err != nil {
		return nil, err
	}
	if a != nil {
		opts = append(opts,
			grpc.WithUnaryInterceptor(UnaryClientInterceptor(a)),
			grpc.WithStreamInterceptor(StreamClientInterceptor(a)),
		)
	}

	if b.tlsEnabled {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		// Default to TLS with system roots to avoid accidental plaintext connections.
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// buildAuthenticator returns nil when no authentication is configured.
func (b *Builder) buildAuthenticator() (*auth.Authenticator, error) {
	if b.authenticator != nil {
		return b.authenticator, nil
	}
	if b.strategy == nil {
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
		return nil, fmt.Errorf("grpcclient: %w", err)
	}
	return a, nil
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
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

	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	if b.tlsServerName != "" {
		tlsConfig.ServerName = b.tlsServerName
	}

	return tlsConfig, nil
}
