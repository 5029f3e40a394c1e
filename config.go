package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadConfigFromEnv.
const EnvPrefix = "GOAUTHCLIENT_"

// Config holds everything the Builder needs besides injected collaborators.
// Values are read once at Build and treated as immutable afterwards.
type Config struct {
	API       APIConfig       `env:", prefix=API_"`
	AllowList AllowListConfig `env:", prefix=ALLOWLIST_"`
	Storage   StorageConfig   `env:", prefix=STORAGE_"`
	Audit     AuditConfig     `env:", prefix=AUDIT_"`
	Metrics   MetricsConfig   `env:", prefix=METRICS_"`
}

// APIConfig locates the authentication endpoints.
type APIConfig struct {
	BaseURL     string        `env:"BASE_URL" validate:"required,url"`
	LoginPath   string        `env:"LOGIN_PATH, default=/auth/login" validate:"required,startswith=/"`
	RefreshPath string        `env:"REFRESH_PATH, default=/auth/refresh" validate:"required,startswith=/"`
	Timeout     time.Duration `env:"TIMEOUT, default=30s" validate:"gte=0"`
}

// AllowListConfig controls which request URLs never carry the credential.
// Matching is by substring.
type AllowListConfig struct {
	// Extra patterns are added to the built-in list.
	Extra []string `env:"EXTRA"`
	// DisableDefaults drops the built-in list, keeping only Extra and the
	// configured login and refresh paths.
	DisableDefaults bool `env:"DISABLE_DEFAULTS"`
}

// StorageConfig selects the session backend used when none is injected.
type StorageConfig struct {
	Namespace   string        `env:"NAMESPACE, default=goauth" validate:"required,excludes=:"`
	Backend     string        `env:"BACKEND, default=memory" validate:"oneof=memory file redis"`
	FilePath    string        `env:"FILE_PATH" validate:"required_if=Backend file"`
	RedisAddr   string        `env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPrefix string        `env:"REDIS_PREFIX, default=goauthclient"`
	RedisTTL    time.Duration `env:"REDIS_TTL" validate:"gte=0"`
}

// AuditConfig controls the asynchronous audit dispatcher. With DropIfFull
// events are dropped (and counted) when the buffer is full instead of
// blocking the caller.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE, default=256" validate:"gte=0"`
	DropIfFull bool `env:"DROP_IF_FULL, default=true"`
}

// MetricsConfig toggles the in-process counters and the refresh latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED, default=true"`
	EnableLatencyHistograms bool `env:"ENABLE_LATENCY_HISTOGRAMS"`
}

// DefaultConfig returns defaults matching the environment defaults. BaseURL
// is left empty and must be set.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			LoginPath:   "/auth/login",
			RefreshPath: "/auth/refresh",
			Timeout:     30 * time.Second,
		},
		Storage: StorageConfig{
			Namespace:   "goauth",
			Backend:     "memory",
			RedisPrefix: "goauthclient",
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: API BaseURL must be an absolute http(s) URL", ErrInvalidConfig)
	}
	if c.API.LoginPath == c.API.RefreshPath {
		return fmt.Errorf("%w: API LoginPath and RefreshPath must differ", ErrInvalidConfig)
	}
	for _, p := range c.AllowList.Extra {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: AllowList patterns must not be blank", ErrInvalidConfig)
		}
	}
	if c.Audit.Enabled && c.Audit.BufferSize == 0 {
		return fmt.Errorf("%w: Audit BufferSize must be > 0 when audit is enabled", ErrInvalidConfig)
	}
	return nil
}

// LoadConfigFromEnv reads Config from GOAUTHCLIENT_* variables, e.g.
// GOAUTHCLIENT_API_BASE_URL or GOAUTHCLIENT_STORAGE_BACKEND. The result is not validated.
func LoadConfigFromEnv(ctx context.Context) (Config, error) {
	return LoadConfigFromLookuper(ctx, envconfig.PrefixLookuper(EnvPrefix, envconfig.OsLookuper()))
}

// LoadConfigFromLookuper is LoadConfigFromEnv over an arbitrary source.
func LoadConfigFromLookuper(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}
