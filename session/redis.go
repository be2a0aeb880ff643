package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "yaade:sessions:"

// loadScript returns the session hash and refreshes its access time and TTL.
var loadScript = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
if #fields == 0 then
	return nil
end
redis.call('HSET', KEYS[1], 'access', ARGV[1])
if tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return fields
`)

// saveScript writes the session only if the stored version matches.
// Returns -1 when the key is gone, 0 on conflict and 1 on success.
var saveScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[2], 'access', ARGV[3], 'values', ARGV[4])
if tonumber(ARGV[5]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

// RedisOptions configures a Redis store.
type RedisOptions struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
	Now    func() time.Time
}

// RedisStore keeps each session in a Redis hash whose key TTL is the
// inactivity window.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(options RedisOptions) (*RedisStore, error) {
	if options.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := options.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &RedisStore{
		client: options.Client,
		prefix: prefix,
		ttl:    options.TTL,
		now:    now,
	}, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load fetches a session and slides its expiry.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	now := s.now()
	raw, err := loadScript.Run(ctx, s.client, []string{s.key(id)}, now.UnixNano(), s.ttl.Milliseconds()).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	fields := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		fields[raw[i]] = raw[i+1]
	}
	sess, err := decodeRedisSession(id, fields)
	if err != nil {
		return nil, err
	}
	sess.LastAccess = now
	return sess, nil
}

// Create stores a new empty session.
func (s *RedisStore) Create(ctx context.Context) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := s.key(id)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"version", "0",
			"created", strconv.FormatInt(now.UnixNano(), 10),
			"access", strconv.FormatInt(now.UnixNano(), 10),
			"values", "{}",
		)
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{ID: id, CreatedAt: now, LastAccess: now, Values: map[string]string{}}, nil
}

// Save writes sess with a compare-and-swap on its version.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrNotFound
	}
	payload, err := json.Marshal(copyValues(sess.Values))
	if err != nil {
		return err
	}

	now := s.now()
	next := sess.Version + 1
	result, err := saveScript.Run(ctx, s.client, []string{s.key(sess.ID)},
		strconv.FormatInt(sess.Version, 10),
		strconv.FormatInt(next, 10),
		strconv.FormatInt(now.UnixNano(), 10),
		string(payload),
		s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	switch result {
	case 1:
		sess.Version = next
		sess.LastAccess = now
		return nil
	case 0:
		return ErrConflict
	default:
		return ErrNotFound
	}
}

// Invalidate deletes a session.
func (s *RedisStore) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func decodeRedisSession(id string, fields map[string]string) (*Session, error) {
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode session version: %w", err)
	}
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode session created: %w", err)
	}
	values := map[string]string{}
	if raw := fields["values"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("decode session values: %w", err)
		}
	}
	return &Session{
		ID:        id,
		CreatedAt: time.Unix(0, created),
		Values:    values,
		Version:   version,
	}, nil
}
