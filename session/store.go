package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live record exists for a session ID.
var ErrNotFound = errors.New("session not found")

// ErrRotateMismatch is returned when the presented refresh-token identifier
// does not match the stored one. The script has already destroyed the
// session by the time this surfaces: a mismatch is treated as token reuse.
var ErrRotateMismatch = errors.New("refresh token id mismatch")

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// ErrUnavailable wraps every Redis transport failure.
var ErrUnavailable = errors.New("session cache unavailable")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

// rotateScript implements the compare-and-swap at the heart of refresh
// rotation. It compares the stored refresh_token_id with the presented one;
// on match it installs the next identifier and re-arms the TTL, on mismatch
// it deletes the record and its index entry so the session cannot be
// replayed further. Exactly one of N concurrent callers presenting the same
// identifier observes status 3.
const rotateScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local ok, rec = pcall(cjson.decode, data)
if not ok or type(rec) ~= "table" or not rec.refresh_token_id or not rec.account_id then
  return {4}
end

local index_key = ARGV[4] .. rec.account_id

if rec.refresh_token_id ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", index_key, rec.session_id)
  return {2}
end

rec.refresh_token_id = ARGV[2]
rec.last_seen_at = tonumber(ARGV[3])
local updated = cjson.encode(rec)
redis.call("SET", KEYS[1], updated, "PX", ARGV[5])
redis.call("SADD", index_key, rec.session_id)

return {3, updated}
`

var rotateLua = redis.NewScript(rotateScript)

// deleteScript removes a record and its index entry in one round trip.
// Returns {1, accountID} when a record was actually deleted, {0} when it
// was already gone.
const deleteScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local account = ""
local ok, rec = pcall(cjson.decode, data)
if ok and type(rec) == "table" and rec.account_id and rec.session_id then
  redis.call("SREM", ARGV[1] .. rec.account_id, rec.session_id)
  account = rec.account_id
end

redis.call("DEL", KEYS[1])
return {1, account}
`

var deleteLua = redis.NewScript(deleteScript)

// touchScript patches last_seen_at inside Redis so the update can never
// write back a record observed before a concurrent rotation or deletion.
// The TTL is preserved.
const touchScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end

local ok, rec = pcall(cjson.decode, data)
if not ok or type(rec) ~= "table" or not rec.account_id then
  return -1
end

local pttl = redis.call("PTTL", KEYS[1])
if pttl <= 0 then
  return 0
end

rec.last_seen_at = tonumber(ARGV[1])
redis.call("SET", KEYS[1], cjson.encode(rec), "PX", pttl)
return 1
`

var touchLua = redis.NewScript(touchScript)

// Store persists session records in Redis under a configurable prefix,
// maintaining a per-account set of session IDs as a secondary index.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

// indexPrefix is passed into Lua scripts, which append the account ID.
func (s *Store) indexPrefix() string {
	return s.prefix + ":a:"
}

func (s *Store) indexKey(accountID string) string {
	return s.indexPrefix() + accountID
}

// Save persists a new record with the given TTL and registers it in the
// account index.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.SessionID), data, ttl)
		pipe.SAdd(ctx, s.indexKey(rec.AccountID), rec.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get fetches a record without mutating any Redis state.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return decodeRecord(data)
}

// Rotate atomically replaces the stored refresh-token identifier. The
// expected/next comparison and the overwrite happen inside a single Lua
// script, so two racing callers presenting the same expected identifier
// resolve to exactly one rotation and one [ErrRotateMismatch]. The record
// TTL is re-armed to ttl because the newly minted refresh token must be
// honoured for its full lifetime.
func (s *Store) Rotate(
	ctx context.Context,
	sessionID, expectedTokenID, nextTokenID string,
	ttl time.Duration,
) (*Record, error) {
	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		expectedTokenID,
		nextTokenID,
		time.Now().Unix(),
		s.indexPrefix(),
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrNotFound
	case rotateStatusMismatch:
		return nil, ErrRotateMismatch
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing updated record payload", ErrUnavailable)
		}
		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid updated record payload", ErrUnavailable)
		}
		return decodeRecord(blob)
	case rotateStatusInvalidBlob:
		return nil, ErrCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrUnavailable)
	}
}

// Delete removes a record and its index entry. Deleting an absent session is
// not an error; the bool reports whether a record actually existed, and the
// string carries the owning account ID when it did.
func (s *Store) Delete(ctx context.Context, sessionID string) (string, bool, error) {
	result, err := deleteLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		s.indexPrefix(),
	).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", false, fmt.Errorf("%w: invalid delete script response", ErrUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", false, fmt.Errorf("%w: invalid delete script status", ErrUnavailable)
	}
	if code != 1 {
		return "", false, nil
	}

	accountID := ""
	if len(parts) > 1 {
		if v, ok := parts[1].(string); ok {
			accountID = v
		}
	}
	return accountID, true, nil
}

// DeleteAllForAccount removes every live session for an account and clears
// the index. It enumerates first and deletes second; a session created in
// between survives until the next call or its natural expiry, which is
// acceptable for revoke-all semantics.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID string) (int, error) {
	indexKey := s.indexKey(accountID)

	sessionIDs, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, indexKey)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return len(sessionIDs), nil
}

// List returns the live records for an account. Index members whose record
// has expired are filtered out and pruned from the index opportunistically;
// the record keys' own TTL is the source of truth for liveness.
func (s *Store) List(ctx context.Context, accountID string) ([]*Record, error) {
	sessionIDs, err := s.redis.SMembers(ctx, s.indexKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, id := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	records := make([]*Record, 0, len(sessionIDs))
	var stale []interface{}
	var corrupt []string
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, sessionIDs[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		rec, decErr := decodeRecord(data)
		if decErr != nil {
			// An undecodable record is as dead as an expired one: drop it
			// from the result and clean it up instead of failing the
			// enumeration.
			stale = append(stale, sessionIDs[i])
			corrupt = append(corrupt, s.key(sessionIDs[i]))
			continue
		}
		records = append(records, rec)
	}

	// Lazy reconciliation; a failure here only delays the next prune.
	if len(corrupt) > 0 {
		_ = s.redis.Del(ctx, corrupt...).Err()
	}
	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, s.indexKey(accountID), stale...).Err()
	}
	return records, nil
}

// Touch updates the record's last-seen timestamp while preserving its TTL.
// The mutation runs as a script touching only last_seen_at, so it can never
// undo a rotation or deletion it raced with. Best-effort by contract:
// callers may drop the returned error.
func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) error {
	status, err := touchLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		at.Unix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case 1:
		return nil
	case 0:
		return ErrNotFound
	case -1:
		return ErrCorrupt
	default:
		return fmt.Errorf("%w: unknown touch script status", ErrUnavailable)
	}
}

// Ping reports point-in-time cache availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeRecord(data []byte) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.SessionID == "" || rec.AccountID == "" {
		return nil, ErrCorrupt
	}
	return rec, nil
}
