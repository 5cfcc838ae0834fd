package oauth2client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-authclient/internal/logging"
)

// GrantType names an OAuth2 token endpoint grant.
type GrantType string

const (
	// GrantClientCredentials exchanges the client's own credentials for a token.
	GrantClientCredentials GrantType = "client_credentials"
	// GrantAuthorizationCode is accepted as a name but no exchange is implemented for it.
	GrantAuthorizationCode GrantType = "authorization_code"
	// GrantRefreshToken exchanges a refresh token for a new access token.
	GrantRefreshToken GrantType = "refresh_token"
)

// DefaultTimeout bounds a token request when no HTTP client is given.
const DefaultTimeout = 30 * time.Second

// ErrUnsupportedGrant is returned for grants the fetcher cannot perform.
var ErrUnsupportedGrant = errors.New("oauth2client: unsupported grant type")

// ErrMissingRefreshToken is returned when a refresh_token exchange is requested without a token.
var ErrMissingRefreshToken = errors.New("oauth2client: refresh token is required")

// Supported reports whether the fetcher can perform grant g.
func (g GrantType) Supported() bool {
	return g == GrantClientCredentials || g == GrantRefreshToken
}

// Known reports whether g is one of the grant names this package recognizes.
func (g GrantType) Known() bool {
	return g.Supported() || g == GrantAuthorizationCode
}

// Config describes a token endpoint and the client registered with it.
type Config struct {
	// TokenURL is the token endpoint (e.g., "https://auth.example.com/oauth/v2/token").
	TokenURL string
	// ClientID identifies the client.
	ClientID string
	// ClientSecret is optional; public clients leave it empty.
	ClientSecret string
	// Scope is a space-delimited scope string, sent only with client_credentials.
	Scope string
}

// Client performs token endpoint exchanges.
// It holds no token state and is safe for concurrent use.
type Client struct {
	config Config
	http   *resty.Client
	logger logrus.FieldLogger
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used to reach the token endpoint.
// Its own Timeout applies instead of DefaultTimeout.
// It must not carry the authentication transport of the API client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = resty.NewWithClient(hc)
		}
	}
}

// WithLogger sets a custom logger for exchange events.
// If not set, no logging will occur.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLoggingEnabled logs exchange events through the standard logrus logger.
func WithLoggingEnabled() Option {
	return func(c *Client) {
		c.logger = logging.Standard()
	}
}

// NewClient creates a token endpoint client.
//
// Parameters:
//   - cfg: token endpoint and client credentials
//   - opts: Optional configuration options (WithHTTPClient, WithLogger, WithLoggingEnabled)
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		config: cfg,
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = resty.New().SetTimeout(DefaultTimeout)
	}
	c.http.SetLogger(c.logger)

	return c
}

// Config returns the endpoint configuration of the client.
func (c *Client) Config() Config {
	return c.config
}

// ClientCredentials performs a client_credentials exchange.
func (c *Client) ClientCredentials(ctx context.Context) (Payload, error) {
	return c.FetchToken(ctx, GrantClientCredentials, "")
}

// Refresh performs a refresh_token exchange.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Payload, error) {
	return c.FetchToken(ctx, GrantRefreshToken, refreshToken)
}

// FetchToken performs a form-encoded exchange against the token endpoint and
// returns the decoded JSON body without examining it.
//
// Transport errors and non-2xx responses are returned as errors; a rejection by
// the endpoint unwraps to *oauth2.RetrieveError.
func (c *Client) FetchToken(ctx context.Context, grant GrantType, refreshToken string) (Payload, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	form, err := c.form(grant, refreshToken)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithField("grant_type", string(grant))
	log.Debug("Requesting token")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(form).
		Post(c.config.TokenURL)
	if err != nil {
		log.WithError(err).Warn("Token request failed")
		return nil, fmt.Errorf("oauth2client: token request failed: %w", err)
	}

	if !resp.IsSuccess() {
		log.WithField("status", resp.StatusCode()).Warn("Token endpoint rejected exchange")
		return nil, fmt.Errorf("oauth2client: %s exchange rejected: %w", grant, retrieveError(resp))
	}

	var payload Payload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("oauth2client: decode token response: %w", err)
	}

	log.Debug("Obtained token")
	return payload, nil
}

// form builds the exchange parameters for grant.
func (c *Client) form(grant GrantType, refreshToken string) (map[string]string, error) {
	form := map[string]string{
		"grant_type": string(grant),
		"client_id":  c.config.ClientID,
	}
	if c.config.ClientSecret != "" {
		form["client_secret"] = c.config.ClientSecret
	}

	switch grant {
	case GrantClientCredentials:
		if c.config.Scope != "" {
			form["scope"] = c.config.Scope
		}
	case GrantRefreshToken:
		if refreshToken == "" {
			return nil, ErrMissingRefreshToken
		}
		form["refresh_token"] = refreshToken
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGrant, grant)
	}

	return form, nil
}

// retrieveError converts an error response into the x/oauth2 error type.
func retrieveError(resp *resty.Response) *oauth2.RetrieveError {
	rerr := &oauth2.RetrieveError{
		Response: resp.RawResponse,
		Body:     resp.Body(),
	}

	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		rerr.ErrorCode = body.Error
		rerr.ErrorDescription = body.ErrorDescription
		rerr.ErrorURI = body.ErrorURI
	}

	return rerr
}
