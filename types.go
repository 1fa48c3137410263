package authcore

import (
	"context"
	"time"
)

// Account is the durable account record owned by the credential store. The
// lifecycle manager reads it for login and snapshots Role into issued
// tokens; the only mutations it performs are the password and
// email-verified updates of the reset/verify flows.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          string
	Active        bool
	EmailVerified bool
}

// CredentialStore is the interface to the durable account record. Lookup
// methods return (nil, nil) when no account exists; errors are reserved for
// transport failures.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
}

// PasswordHasher abstracts the adaptive hash. Verify reports mismatch as
// (false, nil); errors mean the stored hash could not be processed.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TokenPair is the result of login and refresh: a short-lived stateless
// access token and the long-lived session-bound refresh token that can mint
// the next pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// SessionEntry describes one active session for enumeration. The unit of
// revocation: one device/login instance.
type SessionEntry struct {
	SessionID  string
	Device     string
	IP         string
	CreatedAt  time.Time
	LastSeenAt time.Time
}
