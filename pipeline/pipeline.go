package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// Session is what the pipeline needs from the session manager.
// *goAuthClient.Manager satisfies it.
type Session interface {
	// Credential returns the current bearer credential, or "".
	Credential() string
	// RefreshStale returns a credential newer than used, refreshing if needed.
	RefreshStale(ctx context.Context, used string) (string, error)
}

// Next sends a prepared request. http.Client.Do and RoundTripper.RoundTrip fit.
type Next func(*http.Request) (*http.Response, error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAllowList replaces the allow-list taken from the session.
func WithAllowList(a *AllowList) Option {
	return func(p *Pipeline) { p.allow = a }
}

// WithTransport sets the RoundTripper requests are finally sent through.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Pipeline) { p.base = rt }
}

// WithHTTPClient sets the client used by Do and Fetch.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithLogger sets the logger for retry and refresh diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics counts auth failures and retries into m.
func WithMetrics(m *goAuthClient.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStageHook calls fn on every stage transition.
func WithStageHook(fn func(*http.Request, Stage)) Option {
	return func(p *Pipeline) { p.onStage = fn }
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	session Session
	allow   *AllowList
	base    http.RoundTripper
	client  *http.Client
	logger  *slog.Logger
	metrics *goAuthClient.Metrics
	onStage func(*http.Request, Stage)
}

// New builds a pipeline over session. Allow-list, logger and metrics default
// to the session's own when it exposes them (as *goAuthClient.Manager does).
func New(session Session, opts ...Option) *Pipeline {
	p := &Pipeline{session: session}

	if s, ok := session.(interface{ AllowListPatterns() []string }); ok {
		p.allow = NewAllowList(s.AllowListPatterns()...)
	} else {
		p.allow = NewAllowList(goAuthClient.DefaultAllowListPatterns()...)
	}
	if s, ok := session.(interface{ Logger() *slog.Logger }); ok {
		p.logger = s.Logger()
	}
	if s, ok := session.(interface{ Metrics() *goAuthClient.Metrics }); ok {
		p.metrics = s.Metrics()
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.base == nil {
		p.base = http.DefaultTransport
	}
	if p.client == nil {
		p.client = &http.Client{Transport: p.base}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Do sends req through the pipeline using the configured client.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	return p.Intercept(req, p.client.Do)
}

// Fetch builds a request and sends it through Do.
func (p *Pipeline) Fetch(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("goAuthClient: build request: %w", err)
	}
	return p.Do(req)
}

// Intercept runs the request lifecycle around next. Responses other than
// 401/403 are returned unchanged, as are transport errors. A 401/403 on a
// non-allow-listed request triggers one refresh and one retry; if the retry
// is rejected again the result is an *goAuthClient.AuthorizationError. If the
// refresh fails its error is returned instead.
func (p *Pipeline) Intercept(req *http.Request, next Next) (*http.Response, error) {
	p.stage(req, StageBuilding)

	if p.allow.Match(req.URL.String()) {
		p.stage(req, StageSent)
		resp, err := next(req)
		p.finish(req, err)
		return resp, err
	}

	body, err := bufferBody(req)
	if err != nil {
		p.stage(req, StageFailed)
		return nil, fmt.Errorf("goAuthClient: buffer request body: %w", err)
	}

	used := p.session.Credential()
	first := authorize(req, used, body)
	p.stage(first, StageSent)
	resp, err := next(first)
	if err != nil {
		p.stage(first, StageFailed)
		return nil, err
	}
	if !isAuthFailure(resp.StatusCode) {
		p.stage(first, StageSucceeded)
		return resp, nil
	}

	p.stage(first, StageAuthFailed)
	p.metrics.Inc(goAuthClient.MetricRequestAuthFailed)
	discard(resp)

	p.stage(first, StageRefreshing)
	fresh, err := p.session.RefreshStale(req.Context(), used)
	if err != nil {
		p.stage(first, StageFailed)
		return nil, err
	}

	retry := authorize(req, fresh, body)
	p.stage(retry, StageRetried)
	p.metrics.Inc(goAuthClient.MetricRequestRetried)
	resp, err = next(retry)
	if err != nil {
		p.stage(retry, StageFailed)
		return nil, err
	}
	if isAuthFailure(resp.StatusCode) {
		discard(resp)
		p.metrics.Inc(goAuthClient.MetricAuthorizationFailure)
		p.stage(retry, StageFailed)
		return nil, &goAuthClient.AuthorizationError{
			Method:     req.Method,
			URL:        redactURL(req),
			StatusCode: resp.StatusCode,
			Retried:    true,
		}
	}

	p.stage(retry, StageSucceeded)
	return resp, nil
}

func (p *Pipeline) finish(req *http.Request, err error) {
	if err != nil {
		p.stage(req, StageFailed)
		return
	}
	p.stage(req, StageSucceeded)
}

func (p *Pipeline) stage(req *http.Request, s Stage) {
	if p.onStage != nil {
		p.onStage(req, s)
	}
	if p.logger.Enabled(req.Context(), slog.LevelDebug) {
		p.logger.DebugContext(req.Context(), "goAuthClient: request stage",
			"stage", s.String(),
			"method", req.Method,
			"url", redactURL(req),
		)
	}
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// bufferBody reads and closes the request body so it can be replayed.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// authorize clones req with its own copy of body and, when credential is
// set, the bearer header.
func authorize(req *http.Request, credential string, body []byte) *http.Request {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}
	if credential != "" {
		out.Header.Set("Authorization", "Bearer "+credential)
	}
	return out
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// redactURL drops query and userinfo.
func redactURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	u.ForceQuery = false
	u.User = nil
	return u.String()
}
