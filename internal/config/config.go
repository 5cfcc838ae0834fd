// Package config loads the authclient configuration from a YAML file,
// an optional .env file and AUTHCLIENT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/httpclient"
	"github.com/AmmannChristian/go-authclient/oauth2client"
	"github.com/AmmannChristian/go-authclient/storage"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUTHCLIENT_"

// Storage types.
const (
	StorageMemory = "memory"
	StorageDisk   = "disk"
	StorageBolt   = "bolt"
)

// Config is the file and environment configuration of an authenticated client.
type Config struct {
	BaseURL string            `yaml:"baseURL" env:"BASE_URL"`
	Timeout time.Duration     `yaml:"timeout" env:"TIMEOUT"`
	Headers map[string]string `yaml:"headers" env:"HEADERS"`
	Storage StorageConfig     `yaml:"storage" envPrefix:"STORAGE_"`
	Auth    AuthConfig        `yaml:"auth" envPrefix:"AUTH_"`
	TLS     TLSConfig         `yaml:"tls" envPrefix:"TLS_"`
}

// StorageConfig selects the token storage adapter.
type StorageConfig struct {
	// Type is memory, disk or bolt.
	Type string `yaml:"type" env:"TYPE"`
	// Path is the directory (disk) or database file (bolt).
	Path string `yaml:"path" env:"PATH"`
}

// AuthConfig is the flat authentication record; Type selects which fields apply.
type AuthConfig struct {
	Type            string       `yaml:"type" env:"TYPE"`
	TokenKey        string       `yaml:"tokenKey" env:"TOKEN_KEY"`
	APIKey          string       `yaml:"apiKey" env:"API_KEY"`
	CustomHeader    string       `yaml:"customHeader" env:"CUSTOM_HEADER"`
	CustomAuthValue string       `yaml:"customAuthValue" env:"CUSTOM_AUTH_VALUE"`
	OAuth2          OAuth2Config `yaml:"oauth2" envPrefix:"OAUTH2_"`
}

// OAuth2Config describes the token endpoint.
type OAuth2Config struct {
	TokenURL        string `yaml:"tokenUrl" env:"TOKEN_URL"`
	ClientID        string `yaml:"clientId" env:"CLIENT_ID"`
	ClientSecret    string `yaml:"clientSecret" env:"CLIENT_SECRET"`
	GrantType       string `yaml:"grantType" env:"GRANT_TYPE"`
	Scope           string `yaml:"scope" env:"SCOPE"`
	RefreshTokenKey string `yaml:"refreshTokenKey" env:"REFRESH_TOKEN_KEY"`
}

// TLSConfig configures the API connection.
type TLSConfig struct {
	CAFile             string `yaml:"caFile" env:"CA_FILE"`
	CertFile           string `yaml:"certFile" env:"CERT_FILE"`
	KeyFile            string `yaml:"keyFile" env:"KEY_FILE"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify" env:"INSECURE_SKIP_VERIFY"`
}

func (t TLSConfig) enabled() bool {
	return t.CAFile != "" || t.CertFile != "" || t.KeyFile != ""
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		BaseURL: httpclient.DefaultBaseURL,
		Timeout: 30 * time.Second,
		Storage: StorageConfig{Type: StorageMemory},
	}
}

// LoadDotEnv loads variables from the given .env files (".env" if none),
// skipping files that do not exist. Variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads path (if not empty) over Default, applies AUTHCLIENT_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode rejects unknown keys so typos do not silently disable authentication.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the storage selection and the authentication strategy.
func (c Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory:
	case StorageDisk, StorageBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for %s storage", c.Storage.Type)
		}
	default:
		return fmt.Errorf("config: unknown storage type %q", c.Storage.Type)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}

	if _, err := c.Strategy(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Strategy converts the auth section into an auth.Strategy (nil when auth.type is empty).
// The OAuth2 descriptor is set when a token URL is configured.
func (c Config) Strategy() (auth.Strategy, error) {
	a := c.Auth
	fields := auth.Fields{
		TokenKey:        a.TokenKey,
		APIKey:          a.APIKey,
		CustomHeader:    a.CustomHeader,
		CustomAuthValue: a.CustomAuthValue,
	}

	if o := a.OAuth2; o.TokenURL != "" {
		fields.OAuth2 = &auth.OAuth2Descriptor{
			TokenURL:        o.TokenURL,
			ClientID:        o.ClientID,
			ClientSecret:    o.ClientSecret,
			GrantType:       oauth2client.GrantType(o.GrantType),
			Scope:           o.Scope,
			RefreshTokenKey: o.RefreshTokenKey,
		}
	}

	return auth.Parse(a.Type, fields)
}

// OpenStorage opens the configured storage adapter. The returned close
// function releases it and is never nil.
func (c Config) OpenStorage() (storage.Storage, func() error, error) {
	noop := func() error { return nil }

	switch c.Storage.Type {
	case StorageDisk:
		d, err := storage.NewDisk(c.Storage.Path)
		if err != nil {
			return nil, noop, err
		}
		return d, noop, nil
	case StorageBolt:
		b, err := storage.OpenBolt(c.Storage.Path)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	default:
		return storage.NewMemory(), noop, nil
	}
}

// Authenticator builds the auth.Authenticator for store.
func (c Config) Authenticator(store storage.Storage, logger logrus.FieldLogger) (*auth.Authenticator, error) {
	s, err := c.Strategy()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return auth.New(s, store, auth.WithLogger(logger))
}

// Builder returns an httpclient.Builder carrying the request and TLS settings,
// authenticating through a.
func (c Config) Builder(a *auth.Authenticator, logger logrus.FieldLogger) *httpclient.Builder {
	b := httpclient.NewBuilder().
		WithAuthenticator(a).
		WithBaseURL(c.BaseURL).
		WithHeaders(c.Headers).
		WithTimeout(c.Timeout).
		WithLogger(logger)

	if c.TLS.enabled() {
		b = b.WithTLS(c.TLS.CAFile, c.TLS.CertFile, c.TLS.KeyFile)
	}
	if c.TLS.InsecureSkipVerify {
		b = b.WithInsecureSkipVerify()
	}
	return b
}
