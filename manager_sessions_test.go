package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair := env.login(t, "alice@example.com", "hunter2-alice")

	if err := env.mgr.Logout(ctx, pair.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.mgr.Logout(ctx, pair.SessionID); err != nil {
		t.Fatalf("second logout must be a no-op: %v", err)
	}
	if err := env.mgr.Logout(ctx, "never-existed"); err != nil {
		t.Fatalf("logout of unknown session must be a no-op: %v", err)
	}
}

func TestLogoutEmitsOnlyOnActualDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair := env.login(t, "alice@example.com", "hunter2-alice")
	env.waitForEvent(t, "auth.login")

	if err := env.mgr.Logout(ctx, pair.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	ev := env.waitForEvent(t, "auth.logout")
	if ev.AccountID != "acct-alice" || ev.SessionID != pair.SessionID {
		t.Fatalf("unexpected logout event: %+v", ev)
	}

	// The repeated logout deletes nothing, so no second event may appear.
	if err := env.mgr.Logout(ctx, pair.SessionID); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	select {
	case got := <-env.sink.Events():
		t.Fatalf("unexpected event after no-op logout: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRevokeAllSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p1 := env.login(t, "alice@example.com", "hunter2-alice")
	p2 := env.login(t, "alice@example.com", "hunter2-alice")
	p3 := env.login(t, "alice@example.com", "hunter2-alice")

	if err := env.mgr.RevokeAllSessions(ctx, "acct-alice"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	for i, pair := range []*TokenPair{p1, p2, p3} {
		if _, err := env.mgr.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("session %d must be revoked, got %v", i, err)
		}
	}

	entries, err := env.mgr.ListSessions(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no sessions after revoke-all, got %d", len(entries))
	}

	ev := env.waitForEvent(t, "auth.revoke_all")
	if ev.AccountID != "acct-alice" || ev.Metadata["sessions"] != "3" {
		t.Fatalf("unexpected revoke-all event: %+v", ev)
	}
}

func TestRevokeAllUnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	if err := env.mgr.RevokeAllSessions(context.Background(), "no-such-account"); err != nil {
		t.Fatalf("revoke-all on empty account must succeed: %v", err)
	}
}

func TestListSessionsPerDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	phone := WithUserAgent(context.Background(), "phone/2.1")
	laptop := WithUserAgent(context.Background(), "laptop/0.9")

	pPhone, err := env.mgr.Login(phone, "alice@example.com", "hunter2-alice")
	if err != nil {
		t.Fatalf("phone login: %v", err)
	}
	if _, err := env.mgr.Login(laptop, "alice@example.com", "hunter2-alice"); err != nil {
		t.Fatalf("laptop login: %v", err)
	}

	entries, err := env.mgr.ListSessions(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(entries))
	}
	devices := map[string]bool{}
	for _, e := range entries {
		devices[e.Device] = true
	}
	if !devices["phone/2.1"] || !devices["laptop/0.9"] {
		t.Fatalf("device metadata missing: %+v", entries)
	}

	// Logging out one device leaves the other untouched.
	if err := env.mgr.Logout(ctx, pPhone.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	entries, err = env.mgr.ListSessions(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("list after logout: %v", err)
	}
	if len(entries) != 1 || entries[0].Device != "laptop/0.9" {
		t.Fatalf("expected only the laptop session, got %+v", entries)
	}
}

func TestListSessionsOmitsExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.login(t, "alice@example.com", "hunter2-alice")
	env.mr.FastForward(2 * time.Hour)

	entries, err := env.mgr.ListSessions(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected expired session filtered out, got %+v", entries)
	}
}

func TestTouchSessionAdvancesLastSeen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair := env.login(t, "alice@example.com", "hunter2-alice")

	// Last-seen resolution is one second.
	time.Sleep(1100 * time.Millisecond)
	env.mgr.TouchSession(ctx, pair.SessionID)

	entries, err := env.mgr.ListSessions(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 session, got %d", len(entries))
	}
	if !entries[0].LastSeenAt.After(entries[0].CreatedAt) {
		t.Fatalf("expected last seen after creation: %+v", entries[0])
	}
}

func TestTouchSessionUnknownIsSilent(t *testing.T) {
	env := newTestEnv(t)
	// Best-effort contract: no panic, no error surface.
	env.mgr.TouchSession(context.Background(), "never-existed")
}
