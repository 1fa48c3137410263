package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sessionlab/authcore/notify"
	"github.com/sessionlab/authcore/session"
	"github.com/sessionlab/authcore/token"
)

// Refresh exchanges a valid refresh token for a new access/refresh pair.
// The comparison of the presented token's identifier against the session
// record and the overwrite with the next identifier are one atomic cache
// operation: of two concurrent calls presenting the same token, exactly one
// succeeds and the other gets [ErrTokenReuseDetected] with the session
// already revoked.
//
// Refresh deliberately does not re-check the account's active flag or role
// against the credential store; the access token carries the snapshot taken
// at login until the next login or an explicit revocation.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !m.ready() {
		return nil, ErrManagerNotReady
	}

	claims, err := m.codec.ParseRefresh(refreshToken)
	if err != nil {
		return nil, mapTokenErr(err)
	}

	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	nextID := uuid.NewString()
	rec, err := m.sessions.Rotate(opCtx, claims.SessionID, claims.ID, nextID, m.codec.TTL(token.PurposeRefresh))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRotateMismatch):
			m.metrics.incReuseDetected()
			m.logger.Info("refresh token reuse detected, session revoked",
				zap.String("session_id", claims.SessionID))
			m.emit(notify.TypeReuseDetected, claims.AccountID, claims.SessionID, nil)
			return nil, ErrTokenReuseDetected
		case errors.Is(err, session.ErrNotFound):
			return nil, ErrSessionNotFound
		default:
			return nil, unavailable(err)
		}
	}

	access, err := m.codec.SignAccess(rec.AccountID, rec.Role)
	if err != nil {
		return nil, unavailable(err)
	}
	refresh, err := m.codec.SignRefresh(rec.AccountID, rec.SessionID, nextID)
	if err != nil {
		return nil, unavailable(err)
	}

	m.metrics.incRefresh()
	m.emit(notify.TypeRefresh, rec.AccountID, rec.SessionID, nil)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    rec.SessionID,
	}, nil
}

// ValidateAccess verifies an access token by signature and expiry alone, no
// cache lookup. Revocation latency is therefore bounded by the access TTL;
// that is the configured tradeoff for keeping resource-server validation
// free of cache round trips.
func (m *Manager) ValidateAccess(accessToken string) (*token.AccessClaims, error) {
	if m == nil || m.codec == nil {
		return nil, ErrManagerNotReady
	}
	claims, err := m.codec.ParseAccess(accessToken)
	if err != nil {
		return nil, mapTokenErr(err)
	}
	return claims, nil
}
