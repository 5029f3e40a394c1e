package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goAuthClient/pipeline"
)

func newFetchCommand(c *cli) *cobra.Command {
	var (
		method  string
		data    string
		headers []string
	)

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Send an authenticated request",
		Long: `Send a request carrying the stored credential and print the response body.

A path starting with "/" is resolved against the configured base URL. A 401
or 403 answer triggers one refresh and one retry; if the retry is rejected
as well the session is kept and the command fails.

Examples:
  goauthclient fetch /me
  goauthclient fetch -X POST -d '{"name":"x"}' -H 'Content-Type: application/json' /items`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			target := args[0]
			if strings.HasPrefix(target, "/") {
				target = strings.TrimRight(c.v.GetString("api.base_url"), "/") + target
			}

			var body io.Reader
			if data != "" {
				body = strings.NewReader(data)
			}
			req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, body)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("malformed header %q", h)
				}
				req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}

			resp, err := pipeline.New(m).Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("%s %s: %s", req.Method, args[0], resp.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "request", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header, \"Name: value\"")
	return cmd
}
