package authcore

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sessionlab/authcore/notify"
)

// Logout deletes the session record, permanently invalidating its refresh
// token. Idempotent: logging out an absent session is not an error, and
// only an actual deletion emits the logout event.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if !m.ready() {
		return ErrManagerNotReady
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	accountID, deleted, err := m.sessions.Delete(opCtx, sessionID)
	if err != nil {
		return unavailable(err)
	}
	if deleted {
		m.metrics.incLogout()
		m.emit(notify.TypeLogout, accountID, sessionID, nil)
	}
	return nil
}

// RevokeAllSessions deletes every live session for the account, for example
// after a password change or an explicit "sign out everywhere". A session
// created concurrently with the enumeration may survive this call; it is
// caught by the next one or expires naturally.
func (m *Manager) RevokeAllSessions(ctx context.Context, accountID string) error {
	if !m.ready() {
		return ErrManagerNotReady
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	n, err := m.sessions.DeleteAllForAccount(opCtx, accountID)
	if err != nil {
		return unavailable(err)
	}

	m.metrics.addRevoked(n)
	m.logger.Info("revoked all sessions",
		zap.String("account_id", accountID),
		zap.Int("sessions", n))
	m.emit(notify.TypeRevokeAll, accountID, "", map[string]string{
		"sessions": strconv.Itoa(n),
	})
	return nil
}

// ListSessions enumerates the account's live sessions. Index entries whose
// record already expired are filtered out and pruned lazily.
func (m *Manager) ListSessions(ctx context.Context, accountID string) ([]SessionEntry, error) {
	if !m.ready() {
		return nil, ErrManagerNotReady
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	records, err := m.sessions.List(opCtx, accountID)
	if err != nil {
		return nil, unavailable(err)
	}

	entries := make([]SessionEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, SessionEntry{
			SessionID:  rec.SessionID,
			Device:     rec.Device,
			IP:         rec.IP,
			CreatedAt:  time.Unix(rec.CreatedAt, 0),
			LastSeenAt: time.Unix(rec.LastSeenAt, 0),
		})
	}
	return entries, nil
}

// TouchSession updates the session's last-activity timestamp. Best-effort:
// failures are logged at debug and dropped, they never affect correctness.
func (m *Manager) TouchSession(ctx context.Context, sessionID string) {
	if !m.ready() {
		return
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	if err := m.sessions.Touch(opCtx, sessionID, time.Now()); err != nil {
		m.logger.Debug("session touch dropped",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
