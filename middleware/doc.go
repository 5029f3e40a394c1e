// Package middleware gates HTTP handlers on the presence of a live
// goAuthClient session.
//
// It is meant for processes that act on behalf of one signed-in user, such
// as a local companion server or a backend-for-frontend. [Guard] asks the
// session for its user (which drops an expired credential) and either
// injects the profile into the request context or hands the request to a
// fallback handler.
//
//   - [RequireSession] answers 401 when no session is active.
//   - [RedirectToLogin] sends the browser to a login page instead.
//
// The package makes no network calls and never refreshes credentials.
package middleware
