package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as redis hashes, one per call id, so multiple API
// processes see the same in-flight call state. Redis serializes hash writes
// per key, which gives the per-call-id ordering the contract requires, and
// the TTL refresh on every merge is what bounds session lifetime.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var sessionMergeScript = redis.NewScript(`
-- KEYS[1] = session hash key
-- ARGV[1] = ttl_ms (int)
-- ARGV[2..] = alternating field, value pairs
--
-- HSET and PEXPIRE must land together: a merge that set fields but lost the
-- TTL would leak the session forever.
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, callID string) (Session, error) {
	if callID == "" {
		return nil, fmt.Errorf("session: call id is required")
	}
	fields, err := s.rdb.HGetAll(ctx, s.key(callID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: get %q failed: %w", callID, err)
	}
	out := make(Session, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func (s *RedisStore) Merge(ctx context.Context, callID string, fields map[string]string) error {
	if callID == "" {
		return fmt.Errorf("session: call id is required")
	}
	if len(fields) == 0 {
		return nil
	}

	args := make([]any, 0, 1+2*len(fields))
	args = append(args, s.ttl.Milliseconds())
	for k, v := range fields {
		args = append(args, k, v)
	}

	if err := sessionMergeScript.Run(ctx, s.rdb, []string{s.key(callID)}, args...).Err(); err != nil {
		return fmt.Errorf("session: merge %q failed: %w", callID, err)
	}
	return nil
}

func (s *RedisStore) key(callID string) string {
	return "ivr:session:" + callID
}
