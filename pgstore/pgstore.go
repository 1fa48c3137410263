// Package pgstore is the PostgreSQL credential-store adapter, backed by a
// pgx connection pool. The lifecycle manager only reads accounts and
// performs the two mutations of the reset/verify flows; everything else
// about the accounts table belongs to its owning service.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionlab/authcore"
)

// Store implements [authcore.CredentialStore] on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on an existing pool. The pool's lifecycle stays with
// the caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const accountColumns = `id, email, password_hash, role, active, email_verified`

// FindByEmail returns the account for an email, or (nil, nil) when none
// exists.
func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return s.scanAccount(s.pool.QueryRow(ctx, query, email))
}

// FindByID returns the account for an ID, or (nil, nil) when none exists.
func (s *Store) FindByID(ctx context.Context, id string) (*authcore.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.scanAccount(s.pool.QueryRow(ctx, query, id))
}

// UpdatePassword installs a new password hash.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("account not found")
	}
	return nil
}

// MarkEmailVerified flips the account's email-verified flag.
func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	query := `UPDATE accounts SET email_verified = TRUE, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("account not found")
	}
	return nil
}

func (s *Store) scanAccount(row pgx.Row) (*authcore.Account, error) {
	acct := &authcore.Account{}
	err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.PasswordHash,
		&acct.Role,
		&acct.Active,
		&acct.EmailVerified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acct, nil
}
