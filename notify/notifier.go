// Package notify implements the best-effort lifecycle event publisher. The
// notifier is invoked only after the auth operation it describes has
// completed; its failures are logged and can never roll back or delay an
// auth decision.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Lifecycle event types, used as the publish topic.
const (
	TypeLogin                  = "auth.login"
	TypeLogout                 = "auth.logout"
	TypeRefresh                = "auth.refresh"
	TypeRevokeAll              = "auth.revoke_all"
	TypeReuseDetected          = "auth.reuse_detected"
	TypePasswordResetRequested = "auth.password_reset.requested"
	TypePasswordResetCompleted = "auth.password_reset.completed"
	TypeVerificationRequested  = "auth.verification.requested"
	TypeVerificationCompleted  = "auth.verification.completed"
)

// Event is a lifecycle notification. It carries identifiers and metadata
// only, never credentials or password material.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	AccountID string            `json:"account_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the notifier's background worker. Emit must not
// panic; returning is the only contract.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoopSink discards all events.
type NoopSink struct{}

// Emit implements [Sink].
func (NoopSink) Emit(context.Context, Event) {}

// ChannelSink buffers events on a channel, mainly for tests and in-process
// consumers.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Emit implements [Sink].
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the sink's receive side.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Config controls notifier buffering behavior.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Notifier forwards events to a sink from a single background worker.
// Publish never blocks the caller when DropIfFull is set; dropped events
// are counted and visible via [Notifier.Dropped].
type Notifier struct {
	cfg       Config
	sink      Sink
	logger    *zap.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewNotifier starts the background worker. A nil sink degrades to
// [NoopSink]; a nil logger degrades to zap.NewNop().
func NewNotifier(cfg Config, sink Sink, logger *zap.Logger) *Notifier {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if sink == nil {
		sink = NoopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Notifier{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	n.wg.Add(1)
	go n.run()

	return n
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for {
		select {
		case event := <-n.ch:
			n.sink.Emit(context.Background(), event)
		case <-n.done:
			// Drain whatever was queued before Close.
			for {
				select {
				case event := <-n.ch:
					n.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Publish enqueues an event. Safe on a nil receiver and after Close; both
// are silent no-ops so callers never need to guard the emit path.
func (n *Notifier) Publish(ctx context.Context, event Event) {
	if n == nil || n.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if n.cfg.DropIfFull {
		select {
		case n.ch <- event:
		case <-n.done:
		default:
			n.dropped.Add(1)
			n.logger.Warn("event dropped, notifier buffer full",
				zap.String("event_type", event.Type))
		}
		return
	}

	select {
	case n.ch <- event:
	case <-ctx.Done():
	case <-n.done:
	}
}

// Close stops the worker after draining queued events.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.closeOnce.Do(func() {
		n.closed.Store(true)
		close(n.done)
		n.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the buffer was full.
func (n *Notifier) Dropped() uint64 {
	if n == nil {
		return 0
	}
	return n.dropped.Load()
}
