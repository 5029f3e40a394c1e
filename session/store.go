package session

import (
	"context"
	"errors"
	"log/slog"
)

// DefaultNamespace prefixes the three persisted keys when none is configured.
const DefaultNamespace = "goauth"

// Keys names the three independent persisted values.
type Keys struct {
	Credential        string
	RefreshCredential string
	User              string
}

// KeysFor returns the key set for namespace.
func KeysFor(namespace string) Keys {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Keys{
		Credential:        namespace + ":credential",
		RefreshCredential: namespace + ":refresh_credential",
		User:              namespace + ":user",
	}
}

func (k Keys) all() []string {
	return []string{k.Credential, k.RefreshCredential, k.User}
}

// Store is the fail-soft persistence layer for the client session. Its methods
// never return storage errors: reads degrade to "absent", writes to no-ops.
type Store struct {
	backend Backend
	keys    Keys
	logger  *slog.Logger
}

// NewStore wraps backend. A nil backend falls back to a [MemoryBackend]; a nil
// logger falls back to [slog.Default].
func NewStore(backend Backend, namespace string, logger *slog.Logger) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		keys:    KeysFor(namespace),
		logger:  logger,
	}
}

// Keys returns the persisted key names.
func (s *Store) Keys() Keys {
	return s.keys
}

// SaveCredential persists the credential.
func (s *Store) SaveCredential(ctx context.Context, token string) {
	s.set(ctx, s.keys.Credential, token)
}

// LoadCredential returns the stored credential, if any.
func (s *Store) LoadCredential(ctx context.Context) (string, bool) {
	return s.get(ctx, s.keys.Credential)
}

// ClearCredential removes the stored credential.
func (s *Store) ClearCredential(ctx context.Context) {
	s.delete(ctx, s.keys.Credential)
}

// SaveRefreshCredential persists the refresh credential.
func (s *Store) SaveRefreshCredential(ctx context.Context, token string) {
	s.set(ctx, s.keys.RefreshCredential, token)
}

// LoadRefreshCredential returns the stored refresh credential, if any.
func (s *Store) LoadRefreshCredential(ctx context.Context) (string, bool) {
	return s.get(ctx, s.keys.RefreshCredential)
}

// ClearRefreshCredential removes the stored refresh credential.
func (s *Store) ClearRefreshCredential(ctx context.Context) {
	s.delete(ctx, s.keys.RefreshCredential)
}

// SaveUser persists u as JSON. A nil profile clears the stored one.
func (s *Store) SaveUser(ctx context.Context, u *UserProfile) {
	if u == nil {
		s.ClearUser(ctx)
		return
	}
	data, err := EncodeUser(u)
	if err != nil {
		s.logger.Warn("goAuthClient: user profile encode failed", "error", err)
		return
	}
	s.set(ctx, s.keys.User, data)
}

// LoadUser returns the stored profile. A corrupted value reads as absent.
func (s *Store) LoadUser(ctx context.Context) (*UserProfile, bool) {
	data, ok := s.get(ctx, s.keys.User)
	if !ok {
		return nil, false
	}
	u, err := DecodeUser(data)
	if err != nil {
		s.logger.Warn("goAuthClient: stored user profile unreadable", "key", s.keys.User, "error", err)
		return nil, false
	}
	return u, true
}

// ClearUser removes the stored user.
func (s *Store) ClearUser(ctx context.Context) {
	s.delete(ctx, s.keys.User)
}

// SaveAll writes the three session values together. An empty refresh credential or
// nil user removes the corresponding stale value instead of leaving it behind.
func (s *Store) SaveAll(ctx context.Context, credential, refreshCredential string, u *UserProfile) {
	values := map[string]string{s.keys.Credential: credential}
	var stale []string

	if refreshCredential != "" {
		values[s.keys.RefreshCredential] = refreshCredential
	} else {
		stale = append(stale, s.keys.RefreshCredential)
	}

	if u != nil {
		data, err := EncodeUser(u)
		if err != nil {
			s.logger.Warn("goAuthClient: user profile encode failed", "error", err)
			stale = append(stale, s.keys.User)
		} else {
			values[s.keys.User] = data
		}
	} else {
		stale = append(stale, s.keys.User)
	}

	if ms, ok := s.backend.(MultiSetter); ok {
		s.try("write", s.keys.Credential, func() error { return ms.SetMany(ctx, values) })
	} else {
		for k, v := range values {
			s.set(ctx, k, v)
		}
	}

	if len(stale) > 0 {
		s.delete(ctx, stale...)
	}
}

// ClearAll removes the three session values. When the batched delete fails each key
// is retried on its own so a partial failure still removes what it can.
func (s *Store) ClearAll(ctx context.Context) {
	keys := s.keys.all()
	if s.try("delete", "*", func() error { return s.backend.Delete(ctx, keys...) }) {
		return
	}
	for _, k := range keys {
		s.delete(ctx, k)
	}
}

func (s *Store) get(ctx context.Context, key string) (v string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("goAuthClient: session storage read panicked", "key", key, "panic", r)
			v, ok = "", false
		}
	}()

	v, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.warn("read", key, err)
		}
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}

func (s *Store) set(ctx context.Context, key, value string) {
	s.try("write", key, func() error { return s.backend.Set(ctx, key, value) })
}

func (s *Store) delete(ctx context.Context, keys ...string) {
	s.try("delete", keys[0], func() error { return s.backend.Delete(ctx, keys...) })
}

// try runs a storage write and reports whether it succeeded. Errors and panics
// are logged, never propagated.
func (s *Store) try(op, key string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("goAuthClient: session storage "+op+" panicked", "key", key, "panic", r)
			ok = false
		}
	}()

	if err := fn(); err != nil {
		s.warn(op, key, err)
		return false
	}
	return true
}

func (s *Store) warn(op, key string, err error) {
	s.logger.Warn("goAuthClient: session storage "+op+" failed", "key", key, "error", err)
}
