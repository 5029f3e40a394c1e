package goAuthClient

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/session"
)

// UserProfile is the identity shown to the UI.
type UserProfile = session.UserProfile

// AuthState is a snapshot of the session. IsAuthenticated holds only when
// User and Credential are both present and the credential was not judged
// expired at the last check.
type AuthState struct {
	IsAuthenticated bool
	User            *UserProfile
	Credential      string
}

func (s AuthState) clone() AuthState {
	s.User = s.User.Clone()
	return s
}

// LogoutReason says why the session ended.
type LogoutReason string

const (
	LogoutUserRequested LogoutReason = "user_requested"
	LogoutRefreshFailed LogoutReason = "refresh_failed"
	LogoutExpired       LogoutReason = "expired"
)

// Navigator is told to show the login screen after the session ends.
type Navigator interface {
	NavigateToLogin(ctx context.Context, reason LogoutReason)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, reason LogoutReason)

// NavigateToLogin calls f.
func (f NavigatorFunc) NavigateToLogin(ctx context.Context, reason LogoutReason) {
	if f != nil {
		f(ctx, reason)
	}
}

type noopNavigator struct{}

func (noopNavigator) NavigateToLogin(context.Context, LogoutReason) {}

// AuditEvent is one session lifecycle record.
type AuditEvent = internalaudit.Event

// AuditStats counts delivered, dropped and failed audit events.
type AuditStats = internalaudit.Stats

// AuditSink receives audit events from the Manager's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs audit events.
type SlogSink = internalaudit.SlogSink

// NewChannelSink returns a sink buffering up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging through logger (slog.Default when nil).
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
