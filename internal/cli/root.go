// Package cli implements the authclient command line tool.
package cli

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/internal/config"
	"github.com/AmmannChristian/go-authclient/internal/logging"
)

type options struct {
	configFile string
	envFiles   []string
	verbose    bool
}

// NewRootCommand returns a fresh authclient command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "authclient",
		Short: "Send authenticated HTTP requests",
		Long: `authclient sends HTTP requests through the go-authclient pipeline.

Credentials come from the configured strategy (bearer, oauth2, apiKey or custom)
and tokens live in the configured storage (memory, disk or bolt). Settings are
read from --config, then .env files, then AUTHCLIENT_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newDoCommand(opts),
		newTokenCommand(opts),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// session is the per-invocation state shared by subcommands.
type session struct {
	cfg    config.Config
	auth   *auth.Authenticator
	logger logrus.FieldLogger
	close  func() error
}

func (o *options) open() (*session, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	var logger logrus.FieldLogger = logging.Discard()
	if o.verbose {
		logger = logging.New(true)
	}

	store, closeStore, err := cfg.OpenStorage()
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a, err := cfg.Authenticator(store, logger)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"base_url": cfg.BaseURL,
		"storage":  cfg.Storage.Type,
		"auth":     cfg.Auth.Type,
	}).Debug("Configuration loaded")

	return &session{cfg: cfg, auth: a, logger: logger, close: closeStore}, nil
}

// withSession opens a session for fn and closes it afterwards. A close error
// is returned when fn itself succeeded.
func (o *options) withSession(fn func(*session) error) (err error) {
	s, err := o.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", cerr)
		}
	}()
	return fn(s)
}

func (s *session) client() (*resty.Client, error) {
	return s.cfg.Builder(s.auth, s.logger).BuildResty()
}
