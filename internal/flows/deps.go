package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goAuthClient/session"
)

// Deps groups flow dependency sets. The root builder wires this once and
// the Manager delegates to the matching flow.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ExchangeDeps is the transport shared by login and refresh.
type ExchangeDeps struct {
	HTTPClient Doer
	BaseURL    string
	// RequestID returns the correlation id sent as X-Request-ID.
	RequestID func(context.Context) string
	// UserFromToken derives a profile from claims when a response omits one.
	UserFromToken func(token string) (*session.UserProfile, bool)
}
