package middleware

import (
	"context"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// Session is the part of *goAuthClient.Manager the guards need.
type Session interface {
	User(ctx context.Context) *goAuthClient.UserProfile
}

type userContextKey struct{}

// UserFromContext returns the profile a guard stored for this request.
func UserFromContext(ctx context.Context) (*goAuthClient.UserProfile, bool) {
	u, ok := ctx.Value(userContextKey{}).(*goAuthClient.UserProfile)
	return u, ok && u != nil
}

// Guard passes requests to next while session has a user, and to onMissing
// otherwise. A nil onMissing answers 401.
func Guard(session Session, onMissing http.Handler) func(http.Handler) http.Handler {
	if onMissing == nil {
		onMissing = http.HandlerFunc(unauthorized)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session == nil {
				onMissing.ServeHTTP(w, r)
				return
			}

			user := session.User(r.Context())
			if user == nil {
				onMissing.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
