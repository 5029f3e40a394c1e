// Package cmd provides the goauthclient command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

const envPrefix = "GOAUTHCLIENT"

// cli carries per-invocation configuration so commands can be run
// repeatedly in one process.
type cli struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	audit   bool
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree with a fresh configuration.
func NewRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "goauthclient",
		Short: "Sign in to an auth API and make authenticated requests",
		Long: `goauthclient keeps a signed-in session against a token-issuing auth API.

The credential, refresh credential and user profile are stored in a session
file, so "fetch" can attach the credential, refresh it once on 401/403 and
retry.

Configuration:
  Values come from flags, GOAUTHCLIENT_* environment variables (a .env file
  in the working directory is loaded first) and an optional YAML file.
  Example: GOAUTHCLIENT_API_BASE_URL=https://api.example.com

Commands:
  login       Sign in with username and password
  logout      End the stored session
  status      Show the stored session
  fetch       Send an authenticated request
  version     Print version information`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: ./goauthclient.yaml)")
	flags.String("base-url", "", "auth API base URL")
	flags.String("session-file", "", "session file (default: <user config dir>/goauthclient/session.json)")
	flags.String("backend", "", "session backend: file, redis or memory")
	flags.String("redis-addr", "", "redis address for the redis backend")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&c.audit, "audit", false, "log session audit events")

	_ = c.v.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = c.v.BindPFlag("storage.file_path", flags.Lookup("session-file"))
	_ = c.v.BindPFlag("storage.backend", flags.Lookup("backend"))
	_ = c.v.BindPFlag("storage.redis_addr", flags.Lookup("redis-addr"))

	root.AddCommand(
		newLoginCommand(c),
		newLogoutCommand(c),
		newStatusCommand(c),
		newFetchCommand(c),
		newVersionCommand(),
	)
	return root
}

func (c *cli) initConfig(_ *cobra.Command) error {
	_ = godotenv.Load()

	def := goAuthClient.DefaultConfig()
	c.v.SetDefault("api.login_path", def.API.LoginPath)
	c.v.SetDefault("api.refresh_path", def.API.RefreshPath)
	c.v.SetDefault("api.timeout", def.API.Timeout)
	c.v.SetDefault("storage.namespace", def.Storage.Namespace)
	c.v.SetDefault("storage.backend", "file")
	c.v.SetDefault("storage.file_path", defaultSessionPath())
	c.v.SetDefault("storage.redis_prefix", def.Storage.RedisPrefix)
	c.v.SetDefault("allowlist.extra", []string{})

	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()

	path := c.cfgFile
	if path == "" {
		path = findConfigFile(".")
	}
	if path == "" {
		return nil
	}
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// findConfigFile looks for goauthclient.yaml or .yml in dir. The extension
// is required so the binary itself never matches.
func findConfigFile(dir string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, "goauthclient"+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *cli) config() goAuthClient.Config {
	cfg := goAuthClient.DefaultConfig()
	cfg.API.BaseURL = c.v.GetString("api.base_url")
	cfg.API.LoginPath = c.v.GetString("api.login_path")
	cfg.API.RefreshPath = c.v.GetString("api.refresh_path")
	cfg.API.Timeout = c.v.GetDuration("api.timeout")
	cfg.AllowList.Extra = c.v.GetStringSlice("allowlist.extra")
	cfg.Storage.Namespace = c.v.GetString("storage.namespace")
	cfg.Storage.Backend = c.v.GetString("storage.backend")
	cfg.Storage.FilePath = c.v.GetString("storage.file_path")
	cfg.Storage.RedisAddr = c.v.GetString("storage.redis_addr")
	cfg.Storage.RedisPrefix = c.v.GetString("storage.redis_prefix")
	cfg.Audit.Enabled = c.audit
	return cfg
}

func (c *cli) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// manager builds a Manager over the configured store. Forced logouts are
// reported on stderr.
func (c *cli) manager(ctx context.Context, cmd *cobra.Command) (*goAuthClient.Manager, error) {
	logger := c.logger(cmd)
	errOut := cmd.ErrOrStderr()

	b := goAuthClient.New().
		WithConfig(c.config()).
		WithLogger(logger).
		WithNavigator(goAuthClient.NavigatorFunc(func(_ context.Context, reason goAuthClient.LogoutReason) {
			if reason != goAuthClient.LogoutUserRequested {
				fmt.Fprintf(errOut, "session ended (%s); run \"goauthclient login\"\n", reason)
			}
		}))
	if c.audit {
		b = b.WithAuditSink(goAuthClient.NewSlogSink(logger))
	}

	m, err := b.BuildContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("configure session: %w", err)
	}
	return m, nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "goauthclient", "session.json")
}

func writeLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
