package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/internal/logging"
	"github.com/AmmannChristian/go-authclient/storage"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, "https://api.example.com", cfg.BaseURL)
	require.Equal(t, StorageMemory, cfg.Storage.Type)

	s, err := cfg.Strategy()
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
baseURL: https://api.test
timeout: 5s
headers:
  X-App: demo
storage:
  type: bolt
  path: /tmp/tokens.db
auth:
  type: oauth2
  tokenKey: at
  oauth2:
    tokenUrl: https://auth.test/token
    clientId: client
    clientSecret: secret
    scope: openid profile
    refreshTokenKey: rt
tls:
  insecureSkipVerify: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.test", cfg.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, map[string]string{"X-App": "demo"}, cfg.Headers)
	require.Equal(t, StorageConfig{Type: StorageBolt, Path: "/tmp/tokens.db"}, cfg.Storage)
	require.True(t, cfg.TLS.InsecureSkipVerify)

	s, err := cfg.Strategy()
	require.NoError(t, err)
	require.Equal(t, auth.OAuth2{
		TokenKey: "at",
		OAuth2: &auth.OAuth2Descriptor{
			TokenURL:        "https://auth.test/token",
			ClientID:        "client",
			ClientSecret:    "secret",
			Scope:           "openid profile",
			RefreshTokenKey: "rt",
		},
	}, s)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
baseURL: https://from-file.test
auth:
  type: bearer
`)

	t.Setenv("AUTHCLIENT_BASE_URL", "https://from-env.test")
	t.Setenv("AUTHCLIENT_TIMEOUT", "2m")
	t.Setenv("AUTHCLIENT_AUTH_TYPE", "apiKey")
	t.Setenv("AUTHCLIENT_AUTH_API_KEY", "k")
	t.Setenv("AUTHCLIENT_AUTH_CUSTOM_HEADER", "X-API-Key")
	t.Setenv("AUTHCLIENT_HEADERS", "X-One:1,X-Two:2")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://from-env.test", cfg.BaseURL)
	require.Equal(t, 2*time.Minute, cfg.Timeout)
	require.Equal(t, map[string]string{"X-One": "1", "X-Two": "2"}, cfg.Headers)

	s, err := cfg.Strategy()
	require.NoError(t, err)
	require.Equal(t, auth.APIKey{Key: "k", Header: "X-API-Key"}, s)
}

func TestLoad_OAuth2FromEnv(t *testing.T) {
	t.Setenv("AUTHCLIENT_AUTH_TYPE", "oauth2")
	t.Setenv("AUTHCLIENT_AUTH_OAUTH2_TOKEN_URL", "https://auth.test/token")
	t.Setenv("AUTHCLIENT_AUTH_OAUTH2_CLIENT_ID", "client")
	t.Setenv("AUTHCLIENT_AUTH_OAUTH2_GRANT_TYPE", "refresh_token")

	cfg, err := Load("")
	require.NoError(t, err)

	s, err := cfg.Strategy()
	require.NoError(t, err)
	o, ok := s.(auth.OAuth2)
	require.True(t, ok)
	require.Equal(t, "refresh_token", string(o.OAuth2.GrantType))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unknown key", content: "baseUrl: typo\n", want: "parse"},
		{name: "unknown storage", content: "storage:\n  type: redis\n", want: "unknown storage type"},
		{name: "disk without path", content: "storage:\n  type: disk\n", want: "storage.path is required"},
		{name: "unknown auth type", content: "auth:\n  type: basic\n", want: "unknown strategy"},
		{
			name:    "authorization_code grant",
			content: "auth:\n  type: oauth2\n  oauth2:\n    tokenUrl: https://t\n    clientId: c\n    grantType: authorization_code\n",
			want:    "unsupported grant type",
		},
		{name: "negative timeout", content: "timeout: -1s\n", want: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", ""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "AUTHCLIENT_TEST_DOTENV=from-file\nAUTHCLIENT_TEST_KEEP=from-file\n")
	t.Setenv("AUTHCLIENT_TEST_KEEP", "from-env")
	t.Setenv("AUTHCLIENT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("AUTHCLIENT_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	require.Equal(t, "from-file", os.Getenv("AUTHCLIENT_TEST_DOTENV"))
	require.Equal(t, "from-env", os.Getenv("AUTHCLIENT_TEST_KEEP"))
}

func TestOpenStorage(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  StorageConfig
		want any
	}{
		{name: "memory", cfg: StorageConfig{Type: StorageMemory}, want: &storage.Memory{}},
		{name: "disk", cfg: StorageConfig{Type: StorageDisk, Path: filepath.Join(dir, "disk")}, want: &storage.Disk{}},
		{name: "bolt", cfg: StorageConfig{Type: StorageBolt, Path: filepath.Join(dir, "tokens.db")}, want: &storage.Bolt{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage = tt.cfg

			store, closeFn, err := cfg.OpenStorage()
			require.NoError(t, err)
			require.IsType(t, tt.want, store)
			require.NoError(t, closeFn())
		})
	}
}

func TestBuilderAndAuthenticator(t *testing.T) {
	cfg := Default()
	cfg.Auth = AuthConfig{Type: "custom", CustomHeader: "X-Tenant", CustomAuthValue: "acme"}
	cfg.Headers = map[string]string{"X-App": "demo"}

	store := storage.NewMemory()
	a, err := cfg.Authenticator(store, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, auth.Custom{Header: "X-Tenant", Value: "acme"}, a.Strategy())

	client, err := cfg.Builder(a, logging.Discard()).BuildResty()
	require.NoError(t, err)
	require.Equal(t, cfg.BaseURL, client.BaseURL)
}

func TestBuilder_TLSErrorsSurface(t *testing.T) {
	cfg := Default()
	cfg.TLS = TLSConfig{CertFile: "cert.pem"}

	a, err := cfg.Authenticator(storage.NewMemory(), logging.Discard())
	require.NoError(t, err)

	_, err = cfg.Builder(a, logging.Discard()).Build()
	require.ErrorContains(t, err, "both TLS cert and key")
}
