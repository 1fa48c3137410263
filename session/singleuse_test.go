package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestSingleUse(t *testing.T) (*SingleUseStore, *miniredis.Miniredis) {
	t.Helper()
	store, mr, _ := newTestStore(t)
	return NewSingleUseStore(store.redis, "ts"), mr
}

func TestConsumeOnce(t *testing.T) {
	store, _ := newTestSingleUse(t)
	ctx := context.Background()

	if err := store.Put(ctx, "acct-1", "password_reset", "tok-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Consume(ctx, "acct-1", "password_reset", "tok-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := store.Consume(ctx, "acct-1", "password_reset", "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestConsumeMismatchKeepsEntry(t *testing.T) {
	store, _ := newTestSingleUse(t)
	ctx := context.Background()

	if err := store.Put(ctx, "acct-1", "password_reset", "tok-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Consume(ctx, "acct-1", "password_reset", "wrong"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on mismatch, got %v", err)
	}
	// The outstanding token must still be consumable after a failed probe.
	if err := store.Consume(ctx, "acct-1", "password_reset", "tok-1"); err != nil {
		t.Fatalf("consume after mismatch: %v", err)
	}
}

func TestPutOverwritesOutstandingToken(t *testing.T) {
	store, _ := newTestSingleUse(t)
	ctx := context.Background()

	if err := store.Put(ctx, "acct-1", "email_verification", "tok-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "acct-1", "email_verification", "tok-2", time.Hour); err != nil {
		t.Fatalf("second put: %v", err)
	}

	if err := store.Consume(ctx, "acct-1", "email_verification", "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("superseded token must fail, got %v", err)
	}
	if err := store.Consume(ctx, "acct-1", "email_verification", "tok-2"); err != nil {
		t.Fatalf("latest token must consume: %v", err)
	}
}

func TestConsumeExpired(t *testing.T) {
	store, mr := newTestSingleUse(t)
	ctx := context.Background()

	if err := store.Put(ctx, "acct-1", "password_reset", "tok-1", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if err := store.Consume(ctx, "acct-1", "password_reset", "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestPurposesAreIsolated(t *testing.T) {
	store, _ := newTestSingleUse(t)
	ctx := context.Background()

	if err := store.Put(ctx, "acct-1", "password_reset", "tok-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Consume(ctx, "acct-1", "email_verification", "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected purpose isolation, got %v", err)
	}
}
