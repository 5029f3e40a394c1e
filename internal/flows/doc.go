// Package flows contains the network exchanges behind Manager operations.
//
// Each flow (RunLogin, RunRefresh) takes a typed dependency struct and returns a
// result struct carrying either the issued credentials or a failure kind the root
// package maps to public errors. Flows never touch session state or storage;
// applying a result is the Manager's job.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAuthClient (to avoid import cycles).
//   - Retry a failed exchange.
//   - Log credential values.
package flows
