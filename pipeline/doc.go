// Package pipeline attaches the session credential to outgoing HTTP requests
// and recovers from 401/403 responses by refreshing the credential and retrying
// the request once.
//
// # Request lifecycle
//
//	Building -> Sent -> Succeeded
//	                 -> AuthFailed -> Refreshing -> Retried -> Succeeded | Failed
//
// Requests whose URL contains an allow-listed substring (login, refresh,
// registration, forgot-password, /public) are sent without a credential and are
// never refreshed or retried. Concurrent requests rejected with the same
// credential share one refresh; a retried request that is rejected again fails
// with *goAuthClient.AuthorizationError and is not retried further.
//
// The same logic is offered as [Pipeline.Do], [Pipeline.Fetch], the
// interceptor form [Pipeline.Intercept], and an [http.RoundTripper].
package pipeline
