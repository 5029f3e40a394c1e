// Package audit relays session lifecycle events to pluggable sinks.
//
// # Components
//
//   - [Event] is the record emitted for logins, refreshes, logouts and restores.
//   - [Sink] consumes events (channel, JSON lines, slog, no-op).
//   - [Dispatcher] buffers events and delivers them from a single goroutine.
//
// The package does not decide which events are emitted; the session manager does.
// It must not import goAuthClient or any sibling internal package, and it never
// sees credential values.
package audit
