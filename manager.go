package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sessionlab/authcore/notify"
	"github.com/sessionlab/authcore/session"
	"github.com/sessionlab/authcore/token"
)

// Manager orchestrates the token lifecycle: it validates credentials
// against the [CredentialStore], mints tokens through the codec, keeps
// session state in the cache, and fires best-effort lifecycle events.
// A Manager holds no per-request state and is safe for concurrent use.
type Manager struct {
	config   Config
	codec    *token.Codec
	sessions *session.Store
	singles  *session.SingleUseStore
	creds    CredentialStore
	hasher   PasswordHasher
	notifier *notify.Notifier
	metrics  *metrics
	logger   *zap.Logger
}

// Close drains and stops the event notifier. The Manager must not be used
// afterwards.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.notifier.Close()
}

// EventsDropped reports how many lifecycle events the notifier discarded
// because its buffer was full.
func (m *Manager) EventsDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.notifier.Dropped()
}

// Ping reports session-cache availability and round-trip latency. While the
// cache is unreachable every stateful operation fails with
// [ErrServiceUnavailable]; this is the probe for health endpoints.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	if !m.ready() {
		return 0, ErrManagerNotReady
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	latency, err := m.sessions.Ping(opCtx)
	if err != nil {
		return latency, unavailable(err)
	}
	return latency, nil
}

func (m *Manager) ready() bool {
	return m != nil && m.codec != nil && m.sessions != nil && m.creds != nil
}

// opCtx bounds a lifecycle operation with the configured timeout.
func (m *Manager) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.config.Timeouts.Operation <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.config.Timeouts.Operation)
}

// emit publishes a lifecycle event after the operation has completed. It
// uses a background context: the caller's request may already be done.
func (m *Manager) emit(eventType, accountID, sessionID string, metadata map[string]string) {
	m.notifier.Publish(context.Background(), notify.Event{
		Type:      eventType,
		AccountID: accountID,
		SessionID: sessionID,
		Metadata:  metadata,
	})
}

// unavailable wraps infrastructure failures into the retryable
// [ErrServiceUnavailable] class.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// mapTokenErr converts codec failures to the caller-facing taxonomy.
func mapTokenErr(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenMalformed
}
