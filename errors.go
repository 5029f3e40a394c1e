package goAuthClient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/session"
)

var (
	// ErrAuth marks login and refresh failures. Match with errors.Is; the
	// concrete value is an *AuthError.
	ErrAuth = errors.New("authentication failed")
	// ErrAuthorizationFailure marks a request rejected again after a
	// successful refresh. The concrete value is an *AuthorizationError.
	ErrAuthorizationFailure = errors.New("authorization failure")
	// ErrSessionSuperseded is returned by a refresh whose result was discarded
	// because a logout or login happened while it was in flight.
	ErrSessionSuperseded = errors.New("session superseded during refresh")
	// ErrNoRefreshCredential is wrapped by the AuthError of a refresh attempted
	// without a stored refresh credential.
	ErrNoRefreshCredential = errors.New("no refresh credential")
	// ErrInvalidLoginInput is wrapped when username or password is empty.
	ErrInvalidLoginInput = errors.New("username and password are required")
	// ErrMalformedResponse is wrapped when an endpoint answered 2xx without a usable token.
	ErrMalformedResponse = errors.New("malformed authentication response")

	// ErrDecode is returned by the codec for undecodable credentials.
	ErrDecode = jwt.ErrInvalidFormat
	// ErrStorage marks backend failures. The session store logs and swallows them.
	ErrStorage = session.ErrStorage

	ErrInvalidConfig    = errors.New("invalid config")
	ErrBuilderUsed      = errors.New("builder already used")
	ErrManagerClosed    = errors.New("manager closed")
	ErrMissingTransport = errors.New("http client is required")
)

// AuthError is returned by Login and Refresh. Message is the endpoint's own
// error text when it supplied one. Error shows StatusCode only when it is
// outside 2xx, so a malformed success response does not read as a rejection.
type AuthError struct {
	Op         string
	StatusCode int
	Message    string
	RequestID  string
	Err        error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = ErrAuth.Error()
	}
	if e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299) {
		return fmt.Sprintf("goAuthClient: %s: %s (status %d)", e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("goAuthClient: %s: %s", e.Op, msg)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// AuthorizationError reports a request that still got 401/403 after the
// credential was refreshed. Retried is true when a retry was attempted.
type AuthorizationError struct {
	Method     string
	URL        string
	StatusCode int
	Retried    bool
}

func (e *AuthorizationError) Error() string {
	text := http.StatusText(e.StatusCode)
	if e.Retried {
		return fmt.Sprintf("goAuthClient: %s %s: %d %s after refresh", e.Method, e.URL, e.StatusCode, text)
	}
	return fmt.Sprintf("goAuthClient: %s %s: %d %s", e.Method, e.URL, e.StatusCode, text)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorizationFailure }
