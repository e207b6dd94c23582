package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goFedAuth/refresh"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRecordCorrupt is returned when a stored refresh blob cannot be decoded.
var ErrRecordCorrupt = errors.New("refresh record corrupt")

const defaultPurgeBatch = 500

// replaceScript drops the user's previous token (key, index entry, expiry
// member) and writes the new one. Returns 1 when a previous token existed.
const replaceScript = `
local user_key = KEYS[1]
local token_key = KEYS[2]
local expiry_key = KEYS[3]
local uid = ARGV[1]
local next_hash = ARGV[2]
local blob = ARGV[3]
local expires_ms = ARGV[4]
local ttl_ms = ARGV[5]
local token_prefix = ARGV[6]

local removed = 0
local old = redis.call("GET", user_key)
if old then
  removed = redis.call("DEL", token_prefix .. old)
  redis.call("ZREM", expiry_key, uid .. ":" .. old)
end

redis.call("SET", token_key, blob, "PX", ttl_ms)
redis.call("SET", user_key, next_hash, "PX", ttl_ms)
redis.call("ZADD", expiry_key, expires_ms, uid .. ":" .. next_hash)
return removed
`

var replaceLua = redis.NewScript(replaceScript)

const deleteForUserScript = `
local user_key = KEYS[1]
local expiry_key = KEYS[2]
local uid = ARGV[1]
local token_prefix = ARGV[2]

local h = redis.call("GET", user_key)
if not h then
  return 0
end
local n = redis.call("DEL", token_prefix .. h)
redis.call("ZREM", expiry_key, uid .. ":" .. h)
redis.call("DEL", user_key)
return n
`

var deleteForUserLua = redis.NewScript(deleteForUserScript)

// purgeScript removes up to ARGV[3] members scored strictly below ARGV[1].
// The user index is only dropped while it still points at the purged hash,
// so a concurrent replace keeps its fresh token.
const purgeScript = `
local expiry_key = KEYS[1]
local now_ms = ARGV[1]
local prefix = ARGV[2]
local limit = tonumber(ARGV[3])

local members = redis.call("ZRANGEBYSCORE", expiry_key, "-inf", "(" .. now_ms, "LIMIT", 0, limit)
for _, m in ipairs(members) do
  local sep = string.find(m, ":", 1, true)
  if sep then
    local uid = string.sub(m, 1, sep - 1)
    local h = string.sub(m, sep + 1)
    redis.call("DEL", prefix .. ":rt:" .. h)
    local user_key = prefix .. ":ru:" .. uid
    if redis.call("GET", user_key) == h then
      redis.call("DEL", user_key)
    end
  end
  redis.call("ZREM", expiry_key, m)
end
return #members
`

var purgeLua = redis.NewScript(purgeScript)

// RefreshStore is a Redis-backed refresh.Store. Every mutation is a single Lua
// script, so replace, delete and purge are atomic on the server.
//
// Keys: <prefix>:rt:<sha256(token)> holds the encoded record,
// <prefix>:ru:<userID> holds the user's current token hash and
// <prefix>:rx is a sorted set of "<userID>:<hash>" scored by expiry millis.
type RefreshStore struct {
	redis      redis.UniversalClient
	prefix     string
	purgeBatch int
	now        func() time.Time
}

// Option customizes a RefreshStore.
type Option func(*RefreshStore)

// WithClock overrides the clock used to derive key TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *RefreshStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPurgeBatch sets how many expired members one purge script removes.
func WithPurgeBatch(n int) Option {
	return func(s *RefreshStore) {
		if n > 0 {
			s.purgeBatch = n
		}
	}
}

// NewRefreshStore creates a [RefreshStore] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewRefreshStore(rdb redis.UniversalClient, prefix string, opts ...Option) *RefreshStore {
	if prefix == "" {
		prefix = "fa"
	}
	s := &RefreshStore{
		redis:      rdb,
		prefix:     prefix,
		purgeBatch: defaultPurgeBatch,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RefreshStore) tokenPrefix() string {
	return s.prefix + ":rt:"
}

func (s *RefreshStore) tokenKey(hash string) string {
	return s.tokenPrefix() + hash
}

func (s *RefreshStore) userKey(userID int64) string {
	return s.prefix + ":ru:" + strconv.FormatInt(userID, 10)
}

func (s *RefreshStore) expiryKey() string {
	return s.prefix + ":rx"
}

// Replace describes the replace operation and its observable behavior.
//
// Replace removes the user's previous token, if any, and stores rec in one
// script invocation. Records whose expiry already passed are rejected.
func (s *RefreshStore) Replace(ctx context.Context, rec refresh.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		return fmt.Errorf("%w: expiry already passed", refresh.ErrInvalidRecord)
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	hash := refresh.HashToken(rec.Token)
	uid := strconv.FormatInt(rec.UserID, 10)
	err = replaceLua.Run(ctx, s.redis,
		[]string{s.userKey(rec.UserID), s.tokenKey(hash), s.expiryKey()},
		uid,
		hash,
		data,
		rec.ExpiresAt.UnixMilli(),
		ttl.Milliseconds(),
		s.tokenPrefix(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Lookup returns the stored record for token, or an error matching both
// refresh.ErrNotFound and redis.Nil on a miss.
func (s *RefreshStore) Lookup(ctx context.Context, token string) (*refresh.Record, error) {
	if token == "" {
		return nil, refresh.ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.tokenKey(refresh.HashToken(token))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(refresh.ErrNotFound, redis.Nil)
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	rec.Token = token
	return rec, nil
}

// DeleteForUser removes the user's token and index entries. It returns the
// number of token records removed (0 or 1) and is idempotent.
func (s *RefreshStore) DeleteForUser(ctx context.Context, userID int64) (int, error) {
	n, err := deleteForUserLua.Run(ctx, s.redis,
		[]string{s.userKey(userID), s.expiryKey()},
		strconv.FormatInt(userID, 10),
		s.tokenPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// PurgeExpired removes every record whose stored expiry is strictly before
// now, in batches, and returns how many expiry entries were removed.
func (s *RefreshStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := purgeLua.Run(ctx, s.redis,
			[]string{s.expiryKey()},
			now.UnixMilli(),
			s.prefix,
			s.purgeBatch,
		).Int()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += n
		if n < s.purgeBatch {
			return total, nil
		}
	}
}

// Count returns the number of tracked records, expired ones included until purged.
func (s *RefreshStore) Count(ctx context.Context) (int64, error) {
	n, err := s.redis.ZCard(ctx, s.expiryKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Ping reports whether Redis answers.
func (s *RefreshStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

var _ refresh.Store = (*RefreshStore)(nil)
