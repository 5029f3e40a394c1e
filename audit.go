package goAuthClient

import (
	"context"
	"errors"
	"log/slog"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/flows"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshFailure   = "refresh_failure"
	auditEventRefreshDiscarded = "refresh_discarded"
	auditEventLogout           = "logout"
	auditEventSessionExpired   = "session_expired"
	auditEventSessionRestored  = "session_restored"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput        AuditErrorCode = "invalid_input"
	auditErrRejected            AuditErrorCode = "rejected"
	auditErrTransport           AuditErrorCode = "transport"
	auditErrMalformedResponse   AuditErrorCode = "malformed_response"
	auditErrNoRefreshCredential AuditErrorCode = "no_refresh_credential"
	auditErrSuperseded          AuditErrorCode = "superseded"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		Logger:     logger,
	}, sink)
}

func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	requestID string,
	user *UserProfile,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}
	if requestID == "" {
		requestID = RequestIDFromContext(ctx)
	}

	event := internalaudit.NewEvent(eventType, m.now())
	event.RequestID = requestID
	event.Success = success
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}

	m.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrSessionSuperseded):
		return auditErrSuperseded
	case errors.Is(err, ErrNoRefreshCredential):
		return auditErrNoRefreshCredential
	case errors.Is(err, ErrInvalidLoginInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrMalformedResponse):
		return auditErrMalformedResponse
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		if ae.StatusCode != 0 {
			return auditErrRejected
		}
		return auditErrTransport
	}
	return auditErrInternal
}

func authErrorFrom(op string, res flows.ExchangeResult) *AuthError {
	e := &AuthError{
		Op:         op,
		StatusCode: res.StatusCode,
		Message:    res.Message,
		RequestID:  res.RequestID,
		Err:        res.Err,
	}
	switch res.Failure {
	case flows.FailureInvalidInput:
		if e.Err == nil {
			e.Err = ErrInvalidLoginInput
		}
	case flows.FailureNoRefreshCredential:
		e.Err = ErrNoRefreshCredential
	case flows.FailureMalformedResponse:
		if e.Err == nil {
			e.Err = ErrMalformedResponse
		} else {
			e.Err = errors.Join(ErrMalformedResponse, e.Err)
		}
	}
	return e
}
