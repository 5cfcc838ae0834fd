package auth

import (
	"errors"
	"fmt"

	"github.com/AmmannChristian/go-authclient/oauth2client"
)

// Kind is the configuration tag of a Strategy.
type Kind string

const (
	KindBearer Kind = "bearer"
	KindOAuth2 Kind = "oauth2"
	KindAPIKey Kind = "apiKey"
	KindCustom Kind = "custom"
)

const (
	// DefaultTokenKey is the storage key of the access token.
	DefaultTokenKey = "access"
	// DefaultRefreshTokenKey is the storage key of the refresh token.
	DefaultRefreshTokenKey = "refresh_token"
)

var (
	// ErrUnknownStrategy is returned by Parse for an unrecognized tag.
	ErrUnknownStrategy = errors.New("auth: unknown strategy")
	// ErrUnsupportedGrant is returned for grants no exchange exists for.
	ErrUnsupportedGrant = oauth2client.ErrUnsupportedGrant
	// ErrInvalidDescriptor is returned when an OAuth2 descriptor lacks required fields.
	ErrInvalidDescriptor = errors.New("auth: invalid OAuth2 descriptor")
)

// Strategy selects how credentials are attached to outgoing requests.
// It is implemented by Bearer, OAuth2, APIKey and Custom only; a nil
// Strategy disables authentication.
type Strategy interface {
	Kind() Kind
	strategy()
}

// Bearer attaches a token read from storage as "Authorization: Bearer <token>".
type Bearer struct {
	// TokenKey is the storage key of the token (default "access").
	TokenKey string
}

// OAuth2 attaches a stored access token, acquiring one from the token
// endpoint when storage holds none and refreshing it once on a 401.
type OAuth2 struct {
	// TokenKey is the storage key of the access token (default "access").
	TokenKey string
	// OAuth2 describes the token endpoint. Without it the strategy behaves
	// like Bearer: no acquisition and no refresh.
	OAuth2 *OAuth2Descriptor
}

// APIKey sets Header to Key. Nothing is sent unless both are set.
type APIKey struct {
	Key    string
	Header string
}

// Custom sets Header to the static Value. Nothing is sent unless both are set.
type Custom struct {
	Header string
	Value  string
}

// OAuth2Descriptor describes the token endpoint and client registration.
type OAuth2Descriptor struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// GrantType is used for the initial acquisition (default client_credentials).
	// Refreshes always use refresh_token.
	GrantType oauth2client.GrantType
	// Scope is a space-delimited scope string.
	Scope string
	// RefreshTokenKey is the storage key of the refresh token (default "refresh_token").
	RefreshTokenKey string
}

func (Bearer) Kind() Kind { return KindBearer }
func (OAuth2) Kind() Kind { return KindOAuth2 }
func (APIKey) Kind() Kind { return KindAPIKey }
func (Custom) Kind() Kind { return KindCustom }

func (Bearer) strategy() {}
func (OAuth2) strategy() {}
func (APIKey) strategy() {}
func (Custom) strategy() {}

func (b Bearer) tokenKey() string { return orDefault(b.TokenKey, DefaultTokenKey) }
func (o OAuth2) tokenKey() string { return orDefault(o.TokenKey, DefaultTokenKey) }

// Grant returns the configured acquisition grant, defaulting to client_credentials.
func (d *OAuth2Descriptor) Grant() oauth2client.GrantType {
	if d.GrantType == "" {
		return oauth2client.GrantClientCredentials
	}
	return d.GrantType
}

func (d *OAuth2Descriptor) refreshTokenKey() string {
	return orDefault(d.RefreshTokenKey, DefaultRefreshTokenKey)
}

func (d *OAuth2Descriptor) clientConfig() oauth2client.Config {
	return oauth2client.Config{
		TokenURL:     d.TokenURL,
		ClientID:     d.ClientID,
		ClientSecret: d.ClientSecret,
		Scope:        d.Scope,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Fields carries the flat configuration record a strategy is parsed from.
type Fields struct {
	TokenKey        string
	APIKey          string
	CustomHeader    string
	CustomAuthValue string
	OAuth2          *OAuth2Descriptor
}

// Parse builds the Strategy named by tag from f, keeping only the fields
// valid for that variant. An empty tag yields a nil Strategy.
func Parse(tag string, f Fields) (Strategy, error) {
	var s Strategy
	switch Kind(tag) {
	case "":
		return nil, nil
	case KindBearer:
		s = Bearer{TokenKey: f.TokenKey}
	case KindOAuth2:
		s = OAuth2{TokenKey: f.TokenKey, OAuth2: f.OAuth2}
	case KindAPIKey:
		s = APIKey{Key: f.APIKey, Header: f.CustomHeader}
	case KindCustom:
		s = Custom{Header: f.CustomHeader, Value: f.CustomAuthValue}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, tag)
	}

	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks s for combinations that cannot work at request time.
// The authorization_code grant is rejected here: no code exchange exists.
func Validate(s Strategy) error {
	o, ok := s.(OAuth2)
	if !ok || o.OAuth2 == nil {
		return nil
	}

	d := o.OAuth2
	if d.TokenURL == "" {
		return fmt.Errorf("%w: token URL is required", ErrInvalidDescriptor)
	}
	if d.ClientID == "" {
		return fmt.Errorf("%w: client ID is required", ErrInvalidDescriptor)
	}
	if !d.Grant().Supported() {
		return fmt.Errorf("auth: %w: %q", ErrUnsupportedGrant, d.Grant())
	}
	return nil
}
