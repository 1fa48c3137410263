// Package authcore implements token-based authentication and session
// lifecycle management: issuance, rotation, validation, and revocation of
// access/refresh token pairs, single-use password-reset and
// email-verification tokens, and per-account multi-session tracking.
//
// The package is a library, not a server. Callers construct a [Manager]
// through the [Builder], supplying a Redis client (the session cache), a
// [CredentialStore] (the durable account record), and optionally a password
// hasher, event sink, logger, and metrics registerer:
//
//	mgr, err := authcore.New().
//		WithRedis(rdb).
//		WithCredentialStore(store).
//		Build()
//
// Access tokens are stateless and verified by signature alone; refresh
// tokens are additionally checked against a cache-backed session record and
// rotated on every use, with reuse detection revoking the whole session.
// All cross-request atomicity lives in the cache's scripts, so any number
// of stateless Manager replicas can share one Redis.
package authcore
