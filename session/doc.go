// Package session provides the Redis-backed state for refresh sessions and
// single-use tokens: per-session records with atomic rotation, a per-account
// index for enumeration and bulk revocation, and consume-once entries for
// password-reset and email-verification flows.
//
// All mutual exclusion is pushed into Redis (Lua scripts); the package holds
// no in-process state, so multiple replicas can share one cache.
package session
