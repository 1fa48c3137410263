package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sessionlab/authcore/notify"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeCredStore is an in-memory CredentialStore. failAll simulates a
// durable-store outage for the unavailability tests.
type fakeCredStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	failAll bool
}

func newFakeCredStore(accounts ...*Account) *fakeCredStore {
	s := &fakeCredStore{byID: make(map[string]*Account)}
	for _, a := range accounts {
		cp := *a
		s.byID[a.ID] = &cp
	}
	return s
}

var errStoreDown = errors.New("credential store down")

func (s *fakeCredStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failAll {
		return nil, errStoreDown
	}
	for _, a := range s.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeCredStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failAll {
		return nil, errStoreDown
	}
	a, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *fakeCredStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	a, ok := s.byID[id]
	if !ok {
		return errors.New("no such account")
	}
	a.PasswordHash = passwordHash
	return nil
}

func (s *fakeCredStore) MarkEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	a, ok := s.byID[id]
	if !ok {
		return errors.New("no such account")
	}
	a.EmailVerified = true
	return nil
}

func (s *fakeCredStore) get(id string) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.byID[id]
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func (s *fakeCredStore) setFailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// fakeHasher trades argon2 cost for determinism in lifecycle tests; the
// real hasher has its own suite.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (fakeHasher) Verify(password, encodedHash string) (bool, error) {
	return encodedHash == "h:"+password, nil
}

func hashFor(password string) string { return "h:" + password }

func aliceAccount() *Account {
	return &Account{
		ID:           "acct-alice",
		Email:        "alice@example.com",
		PasswordHash: hashFor("hunter2-alice"),
		Role:         "member",
		Active:       true,
	}
}

func bobInactiveAccount() *Account {
	return &Account{
		ID:           "acct-bob",
		Email:        "bob@example.com",
		PasswordHash: hashFor("hunter2-bob"),
		Role:         "member",
		Active:       false,
	}
}

type testEnv struct {
	mgr   *Manager
	creds *fakeCredStore
	sink  *notify.ChannelSink
	mr    *miniredis.Miniredis
}

func testConfigFor(secret []byte) Config {
	return Config{
		Token: TokenConfig{
			Secret:     secret,
			Issuer:     "authcore-test",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
			ResetTTL:   15 * time.Minute,
			VerifyTTL:  time.Hour,
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 64,
		},
		Timeouts: TimeoutConfig{Operation: 5 * time.Second},
	}
}

func newTestEnv(t *testing.T, accounts ...*Account) *testEnv {
	t.Helper()

	if len(accounts) == 0 {
		accounts = []*Account{aliceAccount(), bobInactiveAccount()}
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	creds := newFakeCredStore(accounts...)
	sink := notify.NewChannelSink(64)

	mgr, err := New().
		WithConfig(testConfigFor(testSecret)).
		WithRedis(rdb).
		WithCredentialStore(creds).
		WithPasswordHasher(fakeHasher{}).
		WithEventSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	t.Cleanup(mgr.Close)

	return &testEnv{mgr: mgr, creds: creds, sink: sink, mr: mr}
}

// waitForEvent drains the sink until an event of the wanted type arrives.
// Earlier events of other types are discarded.
func (e *testEnv) waitForEvent(t *testing.T, eventType string) notify.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.sink.Events():
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("event %q never arrived", eventType)
			return notify.Event{}
		}
	}
}

func (e *testEnv) login(t *testing.T, email, passwd string) *TokenPair {
	t.Helper()
	pair, err := e.mgr.Login(context.Background(), email, passwd)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return pair
}
