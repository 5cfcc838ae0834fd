package oauth2client

import (
	"time"

	"golang.org/x/oauth2"
)

// Payload is the decoded JSON body of a token endpoint response.
// Fields other than the token strings are passed through unexamined.
type Payload map[string]any

// AccessToken returns the access_token field, or "" when it is absent or not a string.
func (p Payload) AccessToken() string {
	return p.str("access_token")
}

// RefreshToken returns the refresh_token field, or "".
func (p Payload) RefreshToken() string {
	return p.str("refresh_token")
}

// TokenType returns the token_type field, or "".
func (p Payload) TokenType() string {
	return p.str("token_type")
}

func (p Payload) str(key string) string {
	v, _ := p[key].(string)
	return v
}

// Token converts the payload into an *oauth2.Token for libraries built on x/oauth2.
// The raw payload stays reachable through Token.Extra.
func (p Payload) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  p.AccessToken(),
		TokenType:    p.TokenType(),
		RefreshToken: p.RefreshToken(),
	}

	// JSON numbers decode as float64.
	if secs, ok := p["expires_in"].(float64); ok && secs > 0 {
		tok.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}

	return tok.WithExtra(map[string]any(p))
}
