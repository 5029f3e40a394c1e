package flows

import "context"

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Exchange ExchangeDeps
	Path     string
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RunRefresh exchanges refreshToken for a new credential. A missing refresh
// token fails without any network call. When the response does not rotate the
// refresh token, the one presented is carried forward.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) ExchangeResult {
	if refreshToken == "" {
		return ExchangeResult{
			Failure: FailureNoRefreshCredential,
			Message: "no refresh credential",
		}
	}
	res := postJSON(ctx, deps.Exchange, deps.Path, refreshRequest{RefreshToken: refreshToken})
	if !res.Failed() && res.RefreshToken == "" {
		res.RefreshToken = refreshToken
	}
	return res
}
