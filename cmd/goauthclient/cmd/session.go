package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password",
		Long: `Sign in and store the returned session.

The password is taken from --password, then GOAUTHCLIENT_PASSWORD, then the
first line of standard input.

Examples:
  goauthclient login -u ada
  echo "$PW" | goauthclient login -u ada`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username := c.v.GetString("username")
			password := c.v.GetString("password")
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			ctx := cmd.Context()
			m, err := c.manager(ctx, cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			if _, err := m.Login(ctx, username, password); err != nil {
				return err
			}
			user := m.CurrentUser()
			writeLine(cmd.OutOrStdout(), "Logged in as %s", user.Username)
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "", "username")
	cmd.Flags().StringP("password", "p", "", "password")
	_ = c.v.BindPFlag("username", cmd.Flags().Lookup("username"))
	_ = c.v.BindPFlag("password", cmd.Flags().Lookup("password"))
	return cmd
}

func newLogoutCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			m.Logout(ctx)
			writeLine(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := c.manager(ctx, cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			user := m.User(ctx)
			if user == nil {
				writeLine(out, "Not logged in")
				return nil
			}

			writeLine(out, "Logged in as %s (id %s)", user.Username, user.ID)
			if len(user.Roles) > 0 {
				writeLine(out, "Roles: %s", strings.Join(user.Roles, ", "))
			}
			if exp, ok := m.ExpiresAt(); ok {
				remaining := m.TimeUntilExpiry().Round(time.Second)
				writeLine(out, "Expires: %s (in %s)", exp.UTC().Format(time.RFC3339), remaining)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "goauthclient %s\n", Version)
		},
	}
}

// Version is set at build time via -ldflags.
var Version = "dev"
