package flows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goAuthClient/session"
)

func newService(t *testing.T, h http.HandlerFunc) (Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ex := ExchangeDeps{
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		RequestID:  func(context.Context) string { return "req-1" },
		UserFromToken: func(token string) (*session.UserProfile, bool) {
			return &session.UserProfile{ID: "from-claims", Username: token}, true
		},
	}
	return New(Deps{
		Login:   LoginDeps{Exchange: ex, Path: "/auth/login"},
		Refresh: RefreshDeps{Exchange: ex, Path: "/auth/refresh"},
	}), srv
}

func TestRunLoginSuccess(t *testing.T) {
	var gotReqID, gotPath string
	var gotBody LoginRequest
	svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"token":"T","refreshToken":"R","expiresIn":900,"user":{"id":7,"username":"ada"}}`))
	})

	res := svc.Login(context.Background(), LoginRequest{Username: "ada", Password: "pw"})
	if res.Failed() {
		t.Fatalf("unexpected failure %v: %v %q", res.Failure, res.Err, res.Message)
	}
	if res.Token != "T" || res.RefreshToken != "R" || res.ExpiresIn != 900 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.User == nil || res.User.ID != "7" || res.User.Username != "ada" {
		t.Fatalf("unexpected user %+v", res.User)
	}
	if gotPath != "/auth/login" || gotReqID != "req-1" || res.RequestID != "req-1" {
		t.Fatalf("unexpected path %q or request id %q", gotPath, gotReqID)
	}
	if gotBody.Username != "ada" || gotBody.Password != "pw" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestRunLoginRejectsEmptyInputWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	res := svc.Login(context.Background(), LoginRequest{Username: " ", Password: "pw"})
	if res.Failure != FailureInvalidInput {
		t.Fatalf("expected invalid input, got %v", res.Failure)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestRunLoginErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "message field", status: 401, body: `{"message":"Invalid credentials"}`, message: "Invalid credentials"},
		{name: "error field", status: 400, body: `{"error":"bad request body"}`, message: "bad request body"},
		{name: "raw text", status: 500, body: "upstream down\n", message: "upstream down"},
		{name: "empty body", status: 503, body: "", message: "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			res := svc.Login(context.Background(), LoginRequest{Username: "u", Password: "p"})
			if res.Failure != FailureRejected {
				t.Fatalf("expected rejected, got %v", res.Failure)
			}
			if res.StatusCode != tt.status || res.Message != tt.message {
				t.Fatalf("expected %d %q, got %d %q", tt.status, tt.message, res.StatusCode, res.Message)
			}
		})
	}
}

func TestRunLoginMalformedResponse(t *testing.T) {
	svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":"1"}}`))
	})
	res := svc.Login(context.Background(), LoginRequest{Username: "u", Password: "p"})
	if res.Failure != FailureMalformedResponse {
		t.Fatalf("expected malformed response, got %v", res.Failure)
	}

	svc, _ = newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	res = svc.Login(context.Background(), LoginRequest{Username: "u", Password: "p"})
	if res.Failure != FailureMalformedResponse || res.Err == nil {
		t.Fatalf("expected malformed response with error, got %v %v", res.Failure, res.Err)
	}
}

func TestRunLoginTransportFailure(t *testing.T) {
	svc, srv := newService(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	res := svc.Login(context.Background(), LoginRequest{Username: "u", Password: "p"})
	if res.Failure != FailureTransport || res.Err == nil {
		t.Fatalf("expected transport failure, got %v %v", res.Failure, res.Err)
	}
}

func TestRunRefreshWithoutTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	res := svc.Refresh(context.Background(), "")
	if res.Failure != FailureNoRefreshCredential {
		t.Fatalf("expected no refresh credential, got %v", res.Failure)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestRunRefreshCarriesRefreshTokenForward(t *testing.T) {
	var presented string
	svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		presented = body.RefreshToken
		_, _ = w.Write([]byte(`{"accessToken":"T2"}`))
	})

	res := svc.Refresh(context.Background(), "R1")
	if res.Failed() {
		t.Fatalf("unexpected failure %v", res.Failure)
	}
	if presented != "R1" {
		t.Fatalf("expected refresh token R1 posted, got %q", presented)
	}
	if res.Token != "T2" || res.RefreshToken != "R1" {
		t.Fatalf("unexpected tokens %q %q", res.Token, res.RefreshToken)
	}
	if res.User == nil || res.User.ID != "from-claims" {
		t.Fatalf("expected user derived from claims, got %+v", res.User)
	}
}

func TestRunRefreshContextCanceled(t *testing.T) {
	svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"T2"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := svc.Refresh(ctx, "R1")
	if res.Failure != FailureTransport || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected canceled transport failure, got %v %v", res.Failure, res.Err)
	}
}

func TestJoinURL(t *testing.T) {
	cases := map[[2]string]string{
		{"http://api", "/auth/login"}:   "http://api/auth/login",
		{"http://api/", "/auth/login"}:  "http://api/auth/login",
		{"http://api/v1", "auth/login"}: "http://api/v1/auth/login",
		{"", "/auth/login"}:             "/auth/login",
	}
	for in, want := range cases {
		if got := joinURL(in[0], in[1]); got != want {
			t.Fatalf("joinURL(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestServiceInitialized(t *testing.T) {
	if (Service{}).Initialized() {
		t.Fatalf("zero service should not be initialized")
	}
}
