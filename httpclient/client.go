package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/internal/logging"
	"github.com/AmmannChristian/go-authclient/storage"
)

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "https://api.example.com"

// Config describes a client produced by New or NewDefault.
// It is read once at construction.
type Config struct {
	// BaseURL prefixes relative request paths (default DefaultBaseURL).
	BaseURL string
	// Storage holds tokens. Only NewDefault reads it; New takes the adapter explicitly.
	Storage storage.Storage
	// Auth is the authentication strategy; nil sends requests unauthenticated.
	Auth auth.Strategy
	// Headers are added to every request that does not already carry them.
	Headers map[string]string
	// OnError is called by the client for transport failures and error status
	// responses, after the auth pipeline has finished.
	OnError func(error)

	// Timeout bounds each request including a refresh resend (0 means none).
	Timeout time.Duration
	// Transport is the base transport (default http.DefaultTransport).
	Transport http.RoundTripper
	// TokenClient reaches the token endpoint (default a plain resty client).
	TokenClient *http.Client
	// Logger receives pipeline and token events (default discards).
	Logger logrus.FieldLogger
}

// StatusError describes an error status response passed to Config.OnError.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// New creates a resty client whose requests run through the auth pipeline.
// The storage adapter is required.
//
// Example:
//
//	client, err := httpclient.New(storage.NewMemory(), httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Auth:    auth.Bearer{},
//	})
//	resp, err := client.R().SetContext(ctx).Get("/data")
func New(store storage.Storage, cfg Config) (*resty.Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	a, err := auth.New(cfg.Auth, store,
		auth.WithHTTPClient(cfg.TokenClient),
		auth.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}

	transport := NewTransport(a, cfg.Transport,
		WithStaticHeaders(cfg.Headers),
		WithTransportLogger(logger),
	)

	hc := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	return newRestyClient(hc, cfg.BaseURL, cfg.OnError, logger), nil
}

// NewDefault is New with cfg.Storage, or a fresh in-memory store when it is nil.
func NewDefault(cfg Config) (*resty.Client, error) {
	store := cfg.Storage
	if store == nil {
		store = storage.NewMemory()
	}
	return New(store, cfg)
}

// newRestyClient wraps hc in a resty client. onError is wired to the resty
// hooks so the auth pipeline never calls it.
func newRestyClient(hc *http.Client, baseURL string, onError func(error), logger logrus.FieldLogger) *resty.Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logging.Discard()
	}

	client := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetLogger(logger)

	if onError != nil {
		client.OnError(func(_ *resty.Request, err error) {
			onError(err)
		})
		client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			if resp.IsError() {
				onError(&StatusError{
					Method:     resp.Request.Method,
					URL:        resp.Request.URL,
					StatusCode: resp.StatusCode(),
				})
			}
			return nil
		})
	}

	return client
}
