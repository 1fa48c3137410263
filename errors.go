package authcore

import "errors"

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike;
	// callers can never distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when credentials match a disabled account.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTokenExpired is returned for structurally valid tokens past expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned for tokens failing signature, structure,
	// or purpose checks.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrSessionNotFound is returned when a refresh targets a session that
	// was logged out, revoked, or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenReuseDetected is returned when a rotated-away refresh token is
	// presented again. The session has already been revoked as a side effect.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	// ErrInvalidOrExpiredToken covers every single-use token failure: codec
	// rejection, absent cache entry, or value mismatch.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrServiceUnavailable wraps cache and credential-store transport
	// failures. Retryable with backoff; never conflated with auth failures.
	ErrServiceUnavailable = errors.New("auth backend unavailable")
	// ErrManagerNotReady is returned when operations run on a zero Manager.
	ErrManagerNotReady = errors.New("manager not initialized")
)
