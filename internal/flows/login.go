package flows

import (
	"context"
	"strings"
)

// LoginRequest holds the credentials posted to the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Exchange ExchangeDeps
	Path     string
}

// RunLogin posts credentials and returns the issued token, refresh token and user.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) ExchangeResult {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return ExchangeResult{
			Failure: FailureInvalidInput,
			Message: "username and password are required",
		}
	}
	return postJSON(ctx, deps.Exchange, deps.Path, req)
}
