package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestEmailVerificationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	verify, err := env.mgr.RequestEmailVerification(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("request verification: %v", err)
	}
	if verify == "" {
		t.Fatal("expected a verification token")
	}

	ev := env.waitForEvent(t, "auth.verification.requested")
	if ev.AccountID != "acct-alice" || ev.Metadata["token"] != verify {
		t.Fatalf("verification token must ride the event: %+v", ev)
	}

	if err := env.mgr.VerifyEmail(ctx, verify); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if !env.creds.get("acct-alice").EmailVerified {
		t.Fatal("account not marked verified")
	}
	env.waitForEvent(t, "auth.verification.completed")

	// Replay of a consumed token.
	if err := env.mgr.VerifyEmail(ctx, verify); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken on replay, got %v", err)
	}
}

func TestVerificationAlreadyVerified(t *testing.T) {
	alice := aliceAccount()
	alice.EmailVerified = true
	env := newTestEnv(t, alice)

	tok, err := env.mgr.RequestEmailVerification(context.Background(), "acct-alice")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if tok != "" {
		t.Fatalf("verified account must get no token, got %q", tok)
	}
}

func TestVerificationUnknownOrInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.RequestEmailVerification(ctx, "no-such-account")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive for unknown account, got %v", err)
	}
	_, err = env.mgr.RequestEmailVerification(ctx, "acct-bob")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive for disabled account, got %v", err)
	}
}

func TestVerificationRequestSupersedes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.mgr.RequestEmailVerification(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := env.mgr.RequestEmailVerification(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if err := env.mgr.VerifyEmail(ctx, first); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("superseded token must fail, got %v", err)
	}
	if err := env.mgr.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("latest token must verify: %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	if err := env.mgr.VerifyEmail(context.Background(), "garbage"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestVerificationDoesNotTouchSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair := env.login(t, "alice@example.com", "hunter2-alice")

	verify, err := env.mgr.RequestEmailVerification(ctx, "acct-alice")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := env.mgr.VerifyEmail(ctx, verify); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := env.mgr.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("verification must not revoke sessions: %v", err)
	}
}
