package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a [Backend] when a key holds no value.
	ErrNotFound = errors.New("session value not found")
	// ErrStorage wraps every failure of the underlying storage medium.
	ErrStorage = errors.New("session storage unavailable")
)

// Backend is the durable key/value medium behind a [Store].
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// MultiSetter is implemented by backends that can write several keys in one step.
type MultiSetter interface {
	SetMany(ctx context.Context, values map[string]string) error
}
