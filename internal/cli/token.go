package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and manage stored tokens",
	}
	cmd.AddCommand(
		newTokenShowCommand(opts),
		newTokenSetCommand(opts),
		newTokenFetchCommand(opts),
		newTokenClearCommand(opts),
	)
	return cmd
}

func newTokenShowCommand(opts *options) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the tokens held in storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(func(s *session) error {
				out := cmd.OutOrStdout()
				access, refresh := s.auth.TokenKeys()
				if access == "" {
					fmt.Fprintf(out, "%s strategy stores no tokens\n", kindOf(s))
					return nil
				}

				for _, key := range []string{access, refresh} {
					if key == "" {
						continue
					}
					value, ok, err := s.auth.Storage().GetItem(cmd.Context(), key)
					if err != nil {
						return fmt.Errorf("read %s: %w", key, err)
					}
					switch {
					case !ok:
						fmt.Fprintf(out, "%s: <not set>\n", key)
					case reveal:
						fmt.Fprintf(out, "%s: %s\n", key, value)
					default:
						fmt.Fprintf(out, "%s: %s\n", key, mask(value))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "print token values unmasked")
	return cmd
}

func newTokenSetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a token under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(func(s *session) error {
				if err := s.auth.Storage().SetItem(cmd.Context(), args[0], args[1]); err != nil {
					return fmt.Errorf("store %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", args[0])
				return nil
			})
		},
	}
}

func newTokenFetchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Print the bearer token, acquiring an OAuth2 token if none is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(func(s *session) error {
				token, err := s.auth.TokenSource(cmd.Context()).Token()
				if err != nil {
					return fmt.Errorf("fetch token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), mask(token.AccessToken))
				return nil
			})
		},
	}
}

func newTokenClearCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(func(s *session) error {
				if err := s.auth.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "tokens cleared")
				return nil
			})
		},
	}
}

func kindOf(s *session) string {
	if st := s.auth.Strategy(); st != nil {
		return string(st.Kind())
	}
	return "no"
}

// mask keeps the first four characters of long tokens.
func mask(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + fmt.Sprintf("(%d chars)", len(token))
}
