package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/AmmannChristian/go-authclient/internal/logging"
	"github.com/AmmannChristian/go-authclient/oauth2client"
	"github.com/AmmannChristian/go-authclient/storage"
)

var (
	// ErrNoStorage is returned by New without a storage adapter.
	ErrNoStorage = errors.New("auth: storage adapter is required")
	// ErrRefreshUnsupported is returned by Refresh for strategies that cannot refresh.
	ErrRefreshUnsupported = errors.New("auth: strategy does not support refresh")
	// ErrNoRefreshToken is returned by Refresh when storage holds no refresh token.
	ErrNoRefreshToken = errors.New("auth: no refresh token stored")
	// ErrNoAccessToken is returned when a refresh response carries no access_token.
	ErrNoAccessToken = errors.New("auth: token response has no access_token")
	// ErrNoToken is returned by a TokenSource when no bearer token is available.
	ErrNoToken = errors.New("auth: no bearer token available")
)

const bearerPrefix = "Bearer "

// DefaultExchangeTimeout bounds a shared token exchange.
const DefaultExchangeTimeout = oauth2client.DefaultTimeout

// TokenFetcher performs token endpoint exchanges.
// *oauth2client.Client implements it.
type TokenFetcher interface {
	FetchToken(ctx context.Context, grant oauth2client.GrantType, refreshToken string) (oauth2client.Payload, error)
}

// Authenticator applies a Strategy to outgoing requests and refreshes OAuth2
// tokens on demand. It is safe for concurrent use when its storage is;
// concurrent acquisitions and refreshes share a single token exchange.
type Authenticator struct {
	strategy   Strategy
	store      storage.Storage
	fetcher    TokenFetcher
	httpClient *http.Client
	logger     logrus.FieldLogger
	timeout    time.Duration

	flight singleflight.Group
}

// Option is a functional option for configuring Authenticator.
type Option func(*Authenticator)

// WithFetcher replaces the token fetcher built from the OAuth2 descriptor.
func WithFetcher(f TokenFetcher) Option {
	return func(a *Authenticator) {
		a.fetcher = f
	}
}

// WithHTTPClient sets the HTTP client the default fetcher uses to reach the token endpoint.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Authenticator) {
		a.httpClient = hc
	}
}

// WithExchangeTimeout bounds each shared token exchange (DefaultExchangeTimeout
// if not set). Callers joining an exchange wait at most until it times out.
func WithExchangeTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets a custom logger for token events.
// If not set, no logging will occur.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLoggingEnabled logs token events through the standard logrus logger.
func WithLoggingEnabled() Option {
	return func(a *Authenticator) {
		a.logger = logging.Standard()
	}
}

// New creates an Authenticator for strategy s backed by store.
//
// Parameters:
//   - s: authentication strategy; nil disables authentication
//   - store: storage adapter holding tokens (required)
//   - opts: Optional configuration options (WithFetcher, WithHTTPClient, WithExchangeTimeout, WithLogger, WithLoggingEnabled)
func New(s Strategy, store storage.Storage, opts ...Option) (*Authenticator, error) {
	if store == nil {
		return nil, ErrNoStorage
	}
	if err := Validate(s); err != nil {
		return nil, err
	}

	a := &Authenticator{
		strategy: s,
		store:    store,
		logger:   logging.Discard(),
		timeout:  DefaultExchangeTimeout,
	}

	for _, opt := range opts {
		opt(a)
	}

	if o, ok := s.(OAuth2); ok && o.OAuth2 != nil && a.fetcher == nil {
		a.fetcher = oauth2client.NewClient(o.OAuth2.clientConfig(),
			oauth2client.WithHTTPClient(a.httpClient),
			oauth2client.WithLogger(a.logger),
		)
	}

	if s != nil {
		a.logger = a.logger.WithField("strategy", string(s.Kind()))
	}

	return a, nil
}

// Strategy returns the configured strategy.
func (a *Authenticator) Strategy() Strategy {
	return a.strategy
}

// Storage returns the storage adapter holding the tokens.
func (a *Authenticator) Storage() storage.Storage {
	return a.store
}

// TokenKeys returns the storage keys of the access and refresh tokens.
// Keys that the strategy does not use are empty.
func (a *Authenticator) TokenKeys() (access, refresh string) {
	switch s := a.strategy.(type) {
	case Bearer:
		return s.tokenKey(), ""
	case OAuth2:
		if s.OAuth2 != nil {
			return s.tokenKey(), s.OAuth2.refreshTokenKey()
		}
		return s.tokenKey(), DefaultRefreshTokenKey
	}
	return "", ""
}

// Authorize sets the credential headers of the strategy on h.
//
// A missing credential is not an error: the request proceeds without it.
// For OAuth2, a missing access token is fetched first; a failed fetch
// is returned and the request must not be sent.
func (a *Authenticator) Authorize(ctx context.Context, h http.Header) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch s := a.strategy.(type) {
	case Bearer:
		token, ok, err := a.store.GetItem(ctx, s.tokenKey())
		if err != nil {
			return fmt.Errorf("auth: read token: %w", err)
		}
		if ok && token != "" {
			h.Set("Authorization", bearerPrefix+token)
		}
	case OAuth2:
		token, err := a.accessToken(ctx, s)
		if err != nil {
			return err
		}
		if token != "" {
			h.Set("Authorization", bearerPrefix+token)
		}
	case APIKey:
		if s.Key != "" && s.Header != "" {
			h.Set(s.Header, s.Key)
		}
	case Custom:
		if s.Header != "" && s.Value != "" {
			h.Set(s.Header, s.Value)
		}
	}

	return nil
}

// accessToken returns the stored access token, fetching one when none is stored.
func (a *Authenticator) accessToken(ctx context.Context, s OAuth2) (string, error) {
	token, ok, err := a.store.GetItem(ctx, s.tokenKey())
	if err != nil {
		return "", fmt.Errorf("auth: read token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}
	if s.OAuth2 == nil {
		return "", nil
	}

	return a.do(ctx, "acquire", func(ctx context.Context) (string, error) {
		// Another caller may have stored a token since the first read.
		if token, ok, err := a.store.GetItem(ctx, s.tokenKey()); err == nil && ok && token != "" {
			return token, nil
		}

		grant := s.OAuth2.Grant()
		var refreshToken string
		if grant == oauth2client.GrantRefreshToken {
			rt, ok, err := a.store.GetItem(ctx, s.OAuth2.refreshTokenKey())
			if err != nil {
				return "", fmt.Errorf("auth: read refresh token: %w", err)
			}
			if !ok || rt == "" {
				a.logger.Debug("No refresh token stored, sending request unauthenticated")
				return "", nil
			}
			refreshToken = rt
		}

		payload, err := a.fetcher.FetchToken(ctx, grant, refreshToken)
		if err != nil {
			a.logger.WithError(err).Warn("Token acquisition failed")
			return "", fmt.Errorf("auth: acquire token: %w", err)
		}
		if payload.AccessToken() == "" {
			a.logger.Warn("Token response has no access_token, sending request unauthenticated")
			return "", nil
		}

		if err := a.persist(ctx, s, payload); err != nil {
			return "", err
		}
		a.logger.Debug("Acquired access token")
		return payload.AccessToken(), nil
	})
}

// CanRefresh reports whether Refresh may succeed for the configured strategy.
func (a *Authenticator) CanRefresh() bool {
	o, ok := a.strategy.(OAuth2)
	return ok && o.OAuth2 != nil
}

// Refresh exchanges the stored refresh token for a new access token after
// stale was rejected, persists the new pair and returns the access token.
//
// If storage already holds an access token other than stale, another caller
// refreshed in the meantime and that token is returned without an exchange.
// A failed exchange removes both stored tokens. ErrNoRefreshToken is returned
// when there is nothing to refresh with.
func (a *Authenticator) Refresh(ctx context.Context, stale string) (string, error) {
	s, ok := a.strategy.(OAuth2)
	if !ok || s.OAuth2 == nil {
		return "", ErrRefreshUnsupported
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return a.do(ctx, "refresh", func(ctx context.Context) (string, error) {
		current, ok, err := a.store.GetItem(ctx, s.tokenKey())
		if err == nil && ok && current != "" && current != stale {
			a.logger.Debug("Access token already rotated")
			return current, nil
		}

		refreshToken, ok, err := a.store.GetItem(ctx, s.OAuth2.refreshTokenKey())
		if err != nil {
			return "", fmt.Errorf("auth: read refresh token: %w", err)
		}
		if !ok || refreshToken == "" {
			return "", ErrNoRefreshToken
		}

		payload, err := a.fetcher.FetchToken(ctx, oauth2client.GrantRefreshToken, refreshToken)
		if err == nil && payload.AccessToken() == "" {
			err = ErrNoAccessToken
		}
		if err != nil {
			a.logger.WithError(err).Warn("Token refresh failed, clearing stored tokens")
			a.clear(context.WithoutCancel(ctx), s)
			return "", fmt.Errorf("auth: refresh token: %w", err)
		}

		if err := a.persist(ctx, s, payload); err != nil {
			return "", err
		}
		a.logger.Debug("Refreshed access token")
		return payload.AccessToken(), nil
	})
}

// Clear removes the tokens the strategy stores.
func (a *Authenticator) Clear(ctx context.Context) error {
	access, refresh := a.TokenKeys()
	var errs []error
	for _, key := range []string{access, refresh} {
		if key == "" {
			continue
		}
		if err := a.store.RemoveItem(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("auth: remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (a *Authenticator) clear(ctx context.Context, s OAuth2) {
	for _, key := range []string{s.tokenKey(), s.OAuth2.refreshTokenKey()} {
		if err := a.store.RemoveItem(ctx, key); err != nil {
			a.logger.WithError(err).WithField("key", key).Warn("Failed to remove token")
		}
	}
}

// persist stores the access token and, when present, the refresh token.
func (a *Authenticator) persist(ctx context.Context, s OAuth2, payload oauth2client.Payload) error {
	if err := a.store.SetItem(ctx, s.tokenKey(), payload.AccessToken()); err != nil {
		return fmt.Errorf("auth: store access token: %w", err)
	}
	if rt := payload.RefreshToken(); rt != "" {
		if err := a.store.SetItem(ctx, s.OAuth2.refreshTokenKey(), rt); err != nil {
			return fmt.Errorf("auth: store refresh token: %w", err)
		}
	}
	return nil
}

// do runs fn once for all concurrent callers of key. The shared call is
// detached from the first caller's cancellation and bounded by the exchange
// timeout, so a stalled exchange is abandoned and the next caller starts a new
// one. Each caller still stops waiting when its own context ends.
func (a *Authenticator) do(ctx context.Context, key string, fn func(context.Context) (string, error)) (string, error) {
	ch := a.flight.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		return fn(shared)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header value.
func BearerToken(h http.Header) string {
	v := h.Get("Authorization")
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return v[len(bearerPrefix):]
}

// TokenSource exposes the bearer token of the strategy as an oauth2.TokenSource.
// Each call goes through Authorize, so OAuth2 tokens are acquired on first use.
func (a *Authenticator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, auth: a}
}

type tokenSource struct {
	ctx  context.Context
	auth *Authenticator
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	h := make(http.Header)
	if err := ts.auth.Authorize(ts.ctx, h); err != nil {
		return nil, err
	}

	token := BearerToken(h)
	if token == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
