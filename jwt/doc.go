// Package jwt decodes bearer credentials on the client side and answers expiry
// and identity questions about them.
//
// # Trust model
//
// The codec never verifies signatures. Verification is the server's job; the client
// only reads the payload to decide when a credential is stale and who it belongs to.
// Anything that cannot be decoded is treated as expired (fail closed).
//
// # What this package must NOT do
//
//   - Perform I/O or read the wall clock; callers pass "now" explicitly.
//   - Import goAuthClient, session, or pipeline (no upward imports).
//   - Return partially populated [Claims] on a decode failure.
package jwt
