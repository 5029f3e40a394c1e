// Package goAuthClient is the client side of a bearer-token session: it holds the
// credential, judges its validity from the claims it carries, and recovers from
// authorization failures by refreshing once before forcing a logout.
//
// The public surface is [Manager], built through [New] and [Builder.Build]. All
// Manager methods are safe for concurrent use. Concurrent refresh requests made
// with the same credential share one network call.
//
// # Architecture boundaries
//
// Credential decoding lives in the jwt package, persistence in session, and
// request attachment and retry in pipeline. The network exchanges behind login
// and refresh live under internal/flows and never mutate state; the Manager
// applies their results under its own lock.
//
// # What this package must NOT do
//
//   - Verify credential signatures. Claims are read for expiry and identity only.
//   - Log or audit credential values.
//   - Retry a failed login or refresh.
//   - Import the pipeline package (no import cycles).
package goAuthClient
