package flows

import "context"

// Service is the flow runner built once by the root builder.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with endpoints.
func (s Service) Initialized() bool {
	return s.deps.Login.Path != "" && s.deps.Refresh.Path != ""
}

func (s Service) Login(ctx context.Context, req LoginRequest) ExchangeResult {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) ExchangeResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}
