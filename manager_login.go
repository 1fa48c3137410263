package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sessionlab/authcore/notify"
	"github.com/sessionlab/authcore/session"
	"github.com/sessionlab/authcore/token"
)

// Login validates credentials and opens a new session: it mints an
// access/refresh pair bound to a fresh session ID and writes the session
// record with the refresh token's lifetime. Unknown email and wrong
// password both return [ErrInvalidCredentials]; a disabled account returns
// [ErrAccountInactive] only after the password matched.
//
// Device metadata attached via [WithUserAgent] and [WithClientIP] is
// recorded on the session for later enumeration.
func (m *Manager) Login(ctx context.Context, email, passwd string) (*TokenPair, error) {
	if !m.ready() {
		return nil, ErrManagerNotReady
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	acct, err := m.creds.FindByEmail(opCtx, normalizeEmail(email))
	if err != nil {
		return nil, unavailable(err)
	}
	if acct == nil {
		m.metrics.incLoginFailure()
		return nil, ErrInvalidCredentials
	}

	ok, err := m.hasher.Verify(passwd, acct.PasswordHash)
	if err != nil || !ok {
		m.metrics.incLoginFailure()
		return nil, ErrInvalidCredentials
	}
	if !acct.Active {
		m.metrics.incLoginFailure()
		return nil, ErrAccountInactive
	}

	sessionID := uuid.NewString()
	pair, refreshID, err := m.issuePair(acct.ID, acct.Role, sessionID)
	if err != nil {
		return nil, unavailable(err)
	}

	now := time.Now()
	rec := &session.Record{
		SessionID:      sessionID,
		AccountID:      acct.ID,
		RefreshTokenID: refreshID,
		Role:           acct.Role,
		Device:         userAgentFromContext(ctx),
		IP:             clientIPFromContext(ctx),
		CreatedAt:      now.Unix(),
		LastSeenAt:     now.Unix(),
	}
	if err := m.sessions.Save(opCtx, rec, m.codec.TTL(token.PurposeRefresh)); err != nil {
		return nil, unavailable(err)
	}

	m.metrics.incLogin()
	m.emit(notify.TypeLogin, acct.ID, sessionID, nil)

	return pair, nil
}

// issuePair mints the access/refresh pair for a session. The returned
// refreshID is the identifier the session record must store.
func (m *Manager) issuePair(accountID, role, sessionID string) (*TokenPair, string, error) {
	refreshID := uuid.NewString()

	access, err := m.codec.SignAccess(accountID, role)
	if err != nil {
		return nil, "", err
	}
	refresh, err := m.codec.SignRefresh(accountID, sessionID, refreshID)
	if err != nil {
		return nil, "", err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
	}, refreshID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
