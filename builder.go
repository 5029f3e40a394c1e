package goAuthClient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/session"
)

// defaultAllowList holds URL substrings of endpoints reachable without a session.
var defaultAllowList = []string{
	"/auth/login",
	"/auth/refresh",
	"/auth/register",
	"/users/register",
	"/forgot-password",
	"/public",
}

// DefaultAllowListPatterns returns the built-in allow-list.
func DefaultAllowListPatterns() []string {
	return append([]string(nil), defaultAllowList...)
}

// Builder assembles a Manager. It is single-use.
type Builder struct {
	config     Config
	backend    session.Backend
	redis      redis.UniversalClient
	httpClient *http.Client
	navigator  Navigator
	auditSink  AuditSink
	logger     *slog.Logger
	clock      func() time.Time
	codec      *jwt.Codec

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	cfg.AllowList.Extra = append([]string(nil), cfg.AllowList.Extra...)
	b.config = cfg
	return b
}

// WithBackend injects the session storage backend, overriding Config.Storage.
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis supplies the client used when Config.Storage.Backend is "redis".
// The caller keeps ownership of it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the client used for the login and refresh endpoints.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithNavigator is told to show login whenever the session ends.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithAuditSink receives session audit events. Ignored unless Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the Manager's logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithCodec replaces the credential codec.
func (b *Builder) WithCodec(codec *jwt.Codec) *Builder {
	b.codec = codec
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the Manager and restores any
// persisted session.
func (b *Builder) Build() (*Manager, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with a context for the initial storage reads.
func (b *Builder) BuildContext(ctx context.Context) (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}
	codec := b.codec
	if codec == nil {
		codec = jwt.NewCodec()
	}
	navigator := b.navigator
	if navigator == nil {
		navigator = noopNavigator{}
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	m := &Manager{
		cfg:       cfg,
		codec:     codec,
		navigator: navigator,
		logger:    logger,
		now:       now,
		metrics:   NewMetrics(cfg.Metrics),
		subs:      newBroadcaster(),
		allowList: allowListFor(cfg),
	}

	backend, err := b.resolveBackend(m)
	if err != nil {
		return nil, err
	}
	m.store = session.NewStore(backend, cfg.Storage.Namespace, logger)

	exchange := flows.ExchangeDeps{
		HTTPClient:    httpClient,
		BaseURL:       cfg.API.BaseURL,
		RequestID:     requestIDOrNew,
		UserFromToken: userFromClaims(codec),
	}
	m.flows = flows.New(flows.Deps{
		Login:   flows.LoginDeps{Exchange: exchange, Path: cfg.API.LoginPath},
		Refresh: flows.RefreshDeps{Exchange: exchange, Path: cfg.API.RefreshPath},
	})
	m.audit = newAuditDispatcher(cfg.Audit, b.auditSink, m.logger)

	m.restore(ctx)

	b.built = true
	return m, nil
}

func (b *Builder) resolveBackend(m *Manager) (session.Backend, error) {
	if b.backend != nil {
		return b.backend, nil
	}

	cfg := m.cfg.Storage
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryBackend(), nil
	case "file":
		return session.NewFileBackend(cfg.FilePath), nil
	case "redis":
		client := b.redis
		if client == nil {
			owned := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			m.closers = append(m.closers, owned.Close)
			client = owned
		}
		return session.NewRedisBackend(client, cfg.RedisPrefix, cfg.RedisTTL), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

func allowListFor(cfg Config) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	if !cfg.AllowList.DisableDefaults {
		for _, p := range defaultAllowList {
			add(p)
		}
	}
	add(cfg.API.LoginPath)
	add(cfg.API.RefreshPath)
	for _, p := range cfg.AllowList.Extra {
		add(p)
	}
	return out
}

func userFromClaims(codec *jwt.Codec) func(string) (*session.UserProfile, bool) {
	return func(token string) (*session.UserProfile, bool) {
		u, ok := codec.ExtractUser(token)
		if !ok {
			return nil, false
		}
		return &session.UserProfile{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Roles:    u.Roles,
		}, true
	}
}
