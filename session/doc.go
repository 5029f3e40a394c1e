// Package session persists the client's credential, refresh credential and user
// profile, and hides storage failures from its callers.
//
// # Backends
//
// A [Backend] is a small string key/value surface. [MemoryBackend] lives for the
// process lifetime, [FileBackend] keeps a single JSON document on disk, and
// [RedisBackend] shares the session between processes through Redis.
//
// # Fail-soft contract
//
// [Store] never returns storage errors. A failed or corrupted read is reported as
// "absent"; a failed write is logged and dropped. The session manager therefore keeps
// working purely in memory when durable storage is unavailable.
//
// # What this package must NOT do
//
//   - Import goAuthClient, jwt, or pipeline (no upward imports).
//   - Judge credential validity; expiry decisions belong to the session manager.
//   - Log credential or refresh credential values.
package session
