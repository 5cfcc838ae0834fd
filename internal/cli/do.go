package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDoCommand(opts *options) *cobra.Command {
	var (
		data    string
		headers []string
	)

	cmd := &cobra.Command{
		Use:   "do METHOD PATH",
		Short: "Send a request and print the response",
		Example: `  authclient do GET /users/me
  authclient do POST /items -d '{"name":"x"}' -H 'Content-Type: application/json'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, path := strings.ToUpper(args[0]), args[1]

			parsed, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			return opts.withSession(func(s *session) error {
				client, err := s.client()
				if err != nil {
					return err
				}

				req := client.R().SetContext(cmd.Context()).SetHeaders(parsed)
				if data != "" {
					req.SetBody(data)
				}

				resp, err := req.Execute(method, path)
				if err != nil {
					return fmt.Errorf("%s %s: %w", method, path, err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, resp.Status())
				if body := resp.String(); body != "" {
					fmt.Fprintln(out, body)
				}

				if resp.IsError() {
					return fmt.Errorf("%s %s: %s", method, path, resp.Status())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	return cmd
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
