package middleware

import (
	"net/http"
	"net/url"
)

// RequireSession rejects requests with 401 while no session is active.
func RequireSession(session Session) func(http.Handler) http.Handler {
	return Guard(session, nil)
}

// RedirectToLogin sends requests without a session to loginURL with 303 See
// Other. The original path and query are passed as the "next" parameter.
func RedirectToLogin(session Session, loginURL string) func(http.Handler) http.Handler {
	return Guard(session, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := url.Parse(loginURL)
		if err != nil {
			unauthorized(w, r)
			return
		}
		q := target.Query()
		q.Set("next", r.URL.RequestURI())
		target.RawQuery = q.Encode()
		http.Redirect(w, r, target.String(), http.StatusSeeOther)
	}))
}
