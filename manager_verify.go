package authcore

import (
	"context"
	"errors"

	"github.com/sessionlab/authcore/notify"
	"github.com/sessionlab/authcore/session"
	"github.com/sessionlab/authcore/token"
)

// RequestEmailVerification issues a single-use verification token for the
// account, replacing any outstanding one. An already-verified account is a
// no-op returning ("", nil). Unlike the reset flow this is keyed by account
// ID (the caller is authenticated), so a missing or disabled account is
// reported as [ErrAccountInactive] instead of being hidden.
func (m *Manager) RequestEmailVerification(ctx context.Context, accountID string) (string, error) {
	if !m.ready() {
		return "", ErrManagerNotReady
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	acct, err := m.creds.FindByID(opCtx, accountID)
	if err != nil {
		return "", unavailable(err)
	}
	if acct == nil || !acct.Active {
		return "", ErrAccountInactive
	}
	if acct.EmailVerified {
		return "", nil
	}

	verify, tokenID, err := m.codec.SignSingleUse(acct.ID, token.PurposeEmailVerify)
	if err != nil {
		return "", unavailable(err)
	}
	err = m.singles.Put(opCtx, acct.ID, string(token.PurposeEmailVerify), tokenID,
		m.codec.TTL(token.PurposeEmailVerify))
	if err != nil {
		return "", unavailable(err)
	}

	m.metrics.incSingleUseIssued(string(token.PurposeEmailVerify))
	m.emit(notify.TypeVerificationRequested, acct.ID, "", map[string]string{
		"token": verify,
	})
	return verify, nil
}

// VerifyEmail consumes a verification token and marks the account's email
// verified. Consume-then-mutate ordering as in [Manager.ResetPassword]:
// a crash after the delete means the user requests a new link, never that
// the old one works twice.
func (m *Manager) VerifyEmail(ctx context.Context, verifyToken string) error {
	if !m.ready() {
		return ErrManagerNotReady
	}

	claims, err := m.codec.ParseSingleUse(verifyToken, token.PurposeEmailVerify)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	err = m.singles.Consume(opCtx, claims.AccountID, string(token.PurposeEmailVerify), claims.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return unavailable(err)
	}

	if err := m.creds.MarkEmailVerified(opCtx, claims.AccountID); err != nil {
		return unavailable(err)
	}

	m.metrics.incSingleUseConsumed(string(token.PurposeEmailVerify))
	m.emit(notify.TypeVerificationCompleted, claims.AccountID, "", nil)
	return nil
}
