package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/goAuthClient/session"
)

// FailureKind classifies exchange failures for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidInput
	FailureNoRefreshCredential
	FailureTransport
	FailureRejected
	FailureMalformedResponse
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInvalidInput:
		return "invalid_input"
	case FailureNoRefreshCredential:
		return "no_refresh_credential"
	case FailureTransport:
		return "transport"
	case FailureRejected:
		return "rejected"
	case FailureMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// ExchangeResult carries either the issued credentials or failure metadata.
type ExchangeResult struct {
	Failure    FailureKind
	Err        error
	StatusCode int
	// Message is the server's error text, surfaced verbatim.
	Message      string
	RequestID    string
	Token        string
	RefreshToken string
	ExpiresIn    int64
	User         *session.UserProfile
}

// Failed reports whether the exchange did not produce a credential.
func (r ExchangeResult) Failed() bool {
	return r.Failure != FailureNone
}

const maxErrorBody = 64 << 10

type tokenResponse struct {
	Token        string               `json:"token"`
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	ExpiresIn    int64                `json:"expiresIn"`
	User         *session.UserProfile `json:"user"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func postJSON(ctx context.Context, deps ExchangeDeps, path string, payload any) ExchangeResult {
	var res ExchangeResult
	if deps.RequestID != nil {
		res.RequestID = deps.RequestID(ctx)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		res.Failure = FailureInvalidInput
		res.Err = err
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(deps.BaseURL, path), bytes.NewReader(body))
	if err != nil {
		res.Failure = FailureInvalidInput
		res.Err = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if res.RequestID != "" {
		req.Header.Set("X-Request-ID", res.RequestID)
	}

	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		res.Failure = FailureTransport
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	res.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		res.Failure = FailureRejected
		res.Message = errorMessage(raw, resp.StatusCode)
		return res
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		res.Failure = FailureMalformedResponse
		res.Err = fmt.Errorf("decode response: %w", err)
		return res
	}
	token := decoded.Token
	if token == "" {
		token = decoded.AccessToken
	}
	if token == "" {
		res.Failure = FailureMalformedResponse
		res.Message = "response carried no token"
		return res
	}

	res.Token = token
	res.RefreshToken = decoded.RefreshToken
	res.ExpiresIn = decoded.ExpiresIn
	res.User = decoded.User
	if res.User == nil && deps.UserFromToken != nil {
		if u, ok := deps.UserFromToken(token); ok {
			res.User = u
		}
	}
	return res
}

// errorMessage prefers {"message"}, then {"error"}, then the raw body text.
func errorMessage(raw []byte, status int) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil {
		if er.Message != "" {
			return er.Message
		}
		if er.Error != "" {
			return er.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(status)
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
