package goAuthClient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/session"
)

// Manager owns the client session: the current credential, its refresh
// credential and the signed-in user. State changes only inside Login, Refresh
// and Logout (and the lazy expiry check in User), always under mu.
type Manager struct {
	cfg       Config
	codec     *jwt.Codec
	store     *session.Store
	flows     flows.Service
	navigator Navigator
	logger    *slog.Logger
	now       func() time.Time
	metrics   *Metrics
	audit     *internalaudit.Dispatcher
	subs      *broadcaster
	allowList []string
	closers   []func() error

	mu      sync.RWMutex
	state   AuthState
	refresh string
	// epoch changes on every login and logout; a refresh that started in
	// an older epoch is discarded.
	epoch uint64
	// failed is the outcome of the last failed refresh; it answers callers
	// rejected with the same credential until the next login.
	failed refreshFailure

	// keyed by the credential the caller was using
	refreshGroup singleflight.Group

	closed    atomic.Bool
	closeOnce sync.Once
}

// Login posts username and password to the login endpoint. On success the
// credential, refresh credential and user are persisted and published, and
// the credential is returned. On failure state is untouched and the error is
// an *AuthError carrying the endpoint's message.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	if m.closed.Load() {
		return "", ErrManagerClosed
	}

	res := m.flows.Login(ctx, flows.LoginRequest{Username: username, Password: password})
	if !res.Failed() && res.User == nil {
		res.Failure = flows.FailureMalformedResponse
		res.Message = "response carried no user"
	}
	if res.Failed() {
		err := authErrorFrom("login", res)
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, auditEventLoginFailure, false, res.RequestID, nil, err, func() map[string]string {
			return map[string]string{"failure": res.Failure.String()}
		})
		return "", err
	}

	m.mu.Lock()
	m.epoch++
	m.applyLocked(ctx, res.Token, res.RefreshToken, res.User)
	m.mu.Unlock()

	m.metrics.Inc(MetricLoginSuccess)
	m.emitAudit(ctx, auditEventLoginSuccess, true, res.RequestID, res.User, nil, nil)
	return res.Token, nil
}

// Logout clears storage and state and tells the Navigator to show login.
// Safe to call when already logged out.
func (m *Manager) Logout(ctx context.Context) {
	m.endSession(ctx, LogoutUserRequested, nil)
}

// Refresh obtains a new credential. Concurrent calls share one network call
// and its outcome. A failed refresh logs the session out before the
// *AuthError is returned.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.RefreshStale(ctx, m.Credential())
}

// RefreshStale is Refresh for a caller that was rejected while using
// credential used. If the current credential already differs (someone else
// refreshed), it is returned without a network call. If the refresh that
// replaced used failed, its error is returned and the session is not logged
// out a second time.
func (m *Manager) RefreshStale(ctx context.Context, used string) (string, error) {
	if m.closed.Load() {
		return "", ErrManagerClosed
	}
	if cur, ok, err := m.settled(used); ok {
		m.metrics.Inc(MetricRefreshSkipped)
		return cur, err
	}

	flight := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan(used, func() (any, error) {
		return m.runRefresh(flight, used)
	})

	select {
	case r := <-ch:
		if r.Shared {
			m.metrics.Inc(MetricRefreshCoalesced)
		}
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) runRefresh(ctx context.Context, used string) (string, error) {
	m.mu.Lock()
	if cur, ok, err := m.settledLocked(used); ok {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshSkipped)
		return cur, err
	}
	epoch := m.epoch
	refreshToken := m.refresh
	prevUser := m.state.User
	m.mu.Unlock()

	start := time.Now()
	res := m.flows.Refresh(ctx, refreshToken)
	m.metrics.Observe(MetricRefreshLatency, time.Since(start))

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshDiscarded)
		m.logger.Debug("goAuthClient: refresh result discarded, session changed while in flight")
		m.emitAudit(ctx, auditEventRefreshDiscarded, false, res.RequestID, prevUser, ErrSessionSuperseded, nil)
		return "", ErrSessionSuperseded
	}

	user := res.User
	if user == nil {
		user = prevUser
	}
	if !res.Failed() && user == nil {
		res.Failure = flows.FailureMalformedResponse
		res.Message = "response carried no user"
	}

	if res.Failed() {
		err := authErrorFrom("refresh", res)
		wasActive := m.clearLocked(ctx)
		m.failed = refreshFailure{used: used, epoch: m.epoch, err: err}
		m.mu.Unlock()

		m.metrics.Inc(MetricRefreshFailure)
		m.emitAudit(ctx, auditEventRefreshFailure, false, res.RequestID, prevUser, err, func() map[string]string {
			return map[string]string{"failure": res.Failure.String()}
		})
		m.afterLogout(ctx, LogoutRefreshFailed, wasActive, prevUser)
		return "", err
	}

	m.applyLocked(ctx, res.Token, res.RefreshToken, user)
	m.mu.Unlock()

	m.metrics.Inc(MetricRefreshSuccess)
	m.emitAudit(ctx, auditEventRefreshSuccess, true, res.RequestID, user, nil, nil)
	return res.Token, nil
}

type refreshFailure struct {
	used  string
	epoch uint64
	err   error
}

// settled reports whether a refresh for used already finished: either a
// newer credential is in place or the refresh that replaced used failed.
func (m *Manager) settled(used string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settledLocked(used)
}

func (m *Manager) settledLocked(used string) (string, bool, error) {
	cur := m.state.Credential
	if m.state.IsAuthenticated && cur != "" && cur != used {
		return cur, true, nil
	}
	if f := m.failed; f.err != nil && f.used == used && f.epoch == m.epoch {
		return "", true, f.err
	}
	return "", false, nil
}

// applyLocked installs a freshly issued session. Callers hold mu.
func (m *Manager) applyLocked(ctx context.Context, token, refreshToken string, user *UserProfile) {
	m.store.SaveAll(context.WithoutCancel(ctx), token, refreshToken, user)
	m.state = AuthState{
		IsAuthenticated: true,
		User:            user.Clone(),
		Credential:      token,
	}
	m.refresh = refreshToken
	m.subs.publish(m.state.clone())
}

// clearLocked wipes storage and state. Callers hold mu. It reports whether
// there was anything to clear.
func (m *Manager) clearLocked(ctx context.Context) bool {
	wasActive := m.state.IsAuthenticated || m.state.Credential != "" || m.refresh != ""
	m.epoch++
	m.store.ClearAll(context.WithoutCancel(ctx))
	m.state = AuthState{}
	m.refresh = ""
	if wasActive {
		m.subs.publish(AuthState{})
	}
	return wasActive
}

// endSession logs out. With onlyIf set, it does so only while the current
// credential still equals *onlyIf and reports whether it did.
func (m *Manager) endSession(ctx context.Context, reason LogoutReason, onlyIf *string) bool {
	m.mu.Lock()
	if onlyIf != nil && m.state.Credential != *onlyIf {
		m.mu.Unlock()
		return false
	}
	user := m.state.User
	wasActive := m.clearLocked(ctx)
	m.mu.Unlock()

	m.afterLogout(ctx, reason, wasActive, user)
	return true
}

func (m *Manager) afterLogout(ctx context.Context, reason LogoutReason, wasActive bool, user *UserProfile) {
	switch reason {
	case LogoutUserRequested:
		m.metrics.Inc(MetricLogout)
	case LogoutExpired:
		m.metrics.Inc(MetricSessionExpired)
		m.metrics.Inc(MetricForcedLogout)
	default:
		m.metrics.Inc(MetricForcedLogout)
	}
	if reason != LogoutUserRequested {
		m.logger.Info("goAuthClient: session ended", "reason", string(reason))
	}
	if wasActive {
		eventType := auditEventLogout
		if reason == LogoutExpired {
			eventType = auditEventSessionExpired
		}
		m.emitAudit(ctx, eventType, true, "", user, nil, func() map[string]string {
			return map[string]string{"reason": string(reason)}
		})
	}
	m.navigator.NavigateToLogin(ctx, reason)
}

// restore seeds state from storage. A session is restored only when both
// credential and user are present and the credential has not expired;
// anything else is cleared.
func (m *Manager) restore(ctx context.Context) {
	cred, hasCred := m.store.LoadCredential(ctx)
	user, hasUser := m.store.LoadUser(ctx)

	if hasCred && hasUser && !m.codec.IsExpired(cred, m.now()) {
		refreshToken, _ := m.store.LoadRefreshCredential(ctx)
		m.mu.Lock()
		m.state = AuthState{IsAuthenticated: true, User: user, Credential: cred}
		m.refresh = refreshToken
		m.mu.Unlock()

		m.metrics.Inc(MetricSessionRestored)
		m.emitAudit(ctx, auditEventSessionRestored, true, "", user, nil, nil)
		return
	}

	if hasCred && hasUser {
		m.metrics.Inc(MetricSessionExpired)
		m.emitAudit(ctx, auditEventSessionExpired, true, "", user, nil, func() map[string]string {
			return map[string]string{"reason": "expired_at_startup"}
		})
	}
	if hasCred || hasUser {
		m.logger.Info("goAuthClient: discarding persisted session", "credential", hasCred, "user", hasUser)
	}
	m.store.ClearAll(ctx)
}

// IsAuthenticated reports the authenticated flag as of the last check.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsAuthenticated
}

// CurrentUser returns a copy of the signed-in user without re-checking expiry.
func (m *Manager) CurrentUser() *UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.User.Clone()
}

// Credential returns the current bearer credential, or "".
func (m *Manager) Credential() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Credential
}

// State returns a snapshot of the session.
func (m *Manager) State() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// User returns the signed-in user after re-checking expiry. An expired
// credential logs the session out and User returns nil.
func (m *Manager) User(ctx context.Context) *UserProfile {
	for {
		st := m.State()
		if !st.IsAuthenticated {
			return nil
		}
		if !m.codec.IsExpired(st.Credential, m.now()) {
			return st.User
		}
		if m.endSession(ctx, LogoutExpired, &st.Credential) {
			return nil
		}
		// credential changed underneath us; check the new one
	}
}

// ExpiresAt returns the current credential's expiry, if it carries one.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	return m.codec.ExpiresAt(m.Credential())
}

// TimeUntilExpiry returns how long the current credential stays valid, or 0.
func (m *Manager) TimeUntilExpiry() time.Duration {
	return m.codec.TimeUntilExpiry(m.Credential(), m.now())
}

// Subscribe returns a channel receiving the current state immediately and
// every later change. Delivery is latest-wins: a slow reader skips
// intermediate states and never blocks the Manager. Snapshots are shared
// between subscribers and must not be modified. Call the returned func to
// unsubscribe; the channel is then closed.
func (m *Manager) Subscribe(buffer int) (<-chan AuthState, func()) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subs.subscribe(buffer, m.state.clone())
}

// AllowListPatterns returns the URL substrings whose requests never carry
// the credential.
func (m *Manager) AllowListPatterns() []string {
	return append([]string(nil), m.allowList...)
}

// Metrics returns the Manager's counters. Never nil.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// MetricsSnapshot returns a point-in-time copy of the Manager's metrics.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// Logger returns the logger the Manager was built with.
// Logger returns the logger the Manager was built with.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// AuditDropped reports audit events dropped because the buffer was full.
func (m *Manager) AuditDropped() uint64 {
	return m.audit.Dropped()
}

// AuditStats reports delivered, dropped and failed audit events. All zero
// when auditing is disabled.
func (m *Manager) AuditStats() AuditStats {
	return m.audit.Stats()
}

// Close flushes audit events, closes subscriber channels and releases
// resources the Builder created. In-memory state is kept; persisted state
// is not touched.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.audit.Close()
		m.subs.close()
		for _, c := range m.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
