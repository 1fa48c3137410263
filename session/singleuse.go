package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	consumeStatusAbsent   int64 = 0
	consumeStatusMismatch int64 = 1
	consumeStatusConsumed int64 = 2
)

// consumeScript atomically compares the stored token identifier with the
// presented one and deletes the entry on match. Deletion happens before the
// caller performs the associated mutation, so a crash in between consumes
// the token without opening a replay window.
const consumeScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call("DEL", KEYS[1])
return 2
`

var consumeLua = redis.NewScript(consumeScript)

// SingleUseStore holds the currently outstanding reset and verification
// token identifiers, keyed by (account, purpose). At most one token per
// pair is ever valid: issuing overwrites, consuming deletes.
type SingleUseStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewSingleUseStore creates a [SingleUseStore] under the given key prefix.
func NewSingleUseStore(client redis.UniversalClient, prefix string) *SingleUseStore {
	if prefix == "" {
		prefix = "as"
	}
	return &SingleUseStore{redis: client, prefix: prefix}
}

func (s *SingleUseStore) key(accountID, purpose string) string {
	return s.prefix + ":u:" + purpose + ":" + accountID
}

// Put records tokenID as the only valid token for (accountID, purpose),
// unconditionally replacing any prior outstanding one.
func (s *SingleUseStore) Put(ctx context.Context, accountID, purpose, tokenID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(accountID, purpose), tokenID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Consume validates tokenID against the stored entry and deletes it on
// match. Absent entries and mismatches are indistinguishable to the caller:
// both report not-found, so an attacker cannot probe for outstanding tokens.
func (s *SingleUseStore) Consume(ctx context.Context, accountID, purpose, tokenID string) error {
	status, err := consumeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(accountID, purpose)},
		tokenID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case consumeStatusConsumed:
		return nil
	case consumeStatusAbsent, consumeStatusMismatch:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: unknown consume script status", ErrUnavailable)
	}
}
