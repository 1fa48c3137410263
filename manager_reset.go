package authcore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sessionlab/authcore/notify"
	"github.com/sessionlab/authcore/session"
	"github.com/sessionlab/authcore/token"
)

// RequestPasswordReset issues a single-use reset token for the account
// behind email and stores its identifier, replacing any outstanding reset
// token so only the most recent link works. Enumeration-safe: an unknown or
// disabled account returns ("", nil) with nothing issued, indistinguishable
// from success.
//
// The token also rides the password_reset.requested event so the messaging
// layer can deliver it; the return value exists for trusted callers that
// deliver out-of-band.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if !m.ready() {
		return "", ErrManagerNotReady
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	acct, err := m.creds.FindByEmail(opCtx, normalizeEmail(email))
	if err != nil {
		return "", unavailable(err)
	}
	if acct == nil || !acct.Active {
		return "", nil
	}

	reset, tokenID, err := m.codec.SignSingleUse(acct.ID, token.PurposePasswordReset)
	if err != nil {
		return "", unavailable(err)
	}
	err = m.singles.Put(opCtx, acct.ID, string(token.PurposePasswordReset), tokenID,
		m.codec.TTL(token.PurposePasswordReset))
	if err != nil {
		return "", unavailable(err)
	}

	m.metrics.incSingleUseIssued(string(token.PurposePasswordReset))
	m.emit(notify.TypePasswordResetRequested, acct.ID, "", map[string]string{
		"token": reset,
	})
	return reset, nil
}

// ResetPassword consumes a reset token and installs the new password. The
// cache entry is deleted atomically with the match, before the password
// mutation: a crash in between costs the user a fresh reset request, never
// a window in which the same link works twice. Every token-related failure
// collapses into [ErrInvalidOrExpiredToken].
//
// A successful reset revokes all of the account's sessions.
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if !m.ready() {
		return ErrManagerNotReady
	}

	claims, err := m.codec.ParseSingleUse(resetToken, token.PurposePasswordReset)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	// Hash before consuming so a hasher failure doesn't burn the token.
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return unavailable(err)
	}

	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	err = m.singles.Consume(opCtx, claims.AccountID, string(token.PurposePasswordReset), claims.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return unavailable(err)
	}

	if err := m.creds.UpdatePassword(opCtx, claims.AccountID, hash); err != nil {
		return unavailable(err)
	}

	if err := m.RevokeAllSessions(ctx, claims.AccountID); err != nil {
		// The password is already changed; surface the failure so the caller
		// retries the flow rather than leaving stale sessions alive.
		m.logger.Warn("revoke-all after password reset failed",
			zap.String("account_id", claims.AccountID),
			zap.Error(err))
		return err
	}

	m.metrics.incSingleUseConsumed(string(token.PurposePasswordReset))
	m.emit(notify.TypePasswordResetCompleted, claims.AccountID, "", nil)
	return nil
}
