package lease

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisManager keeps each lock in a hash {owner, acquired} whose key expires
// with the lock.
type RedisManager struct {
	client redis.Cmdable
	prefix string
}

func NewRedisManager(client redis.Cmdable, prefix string) *RedisManager {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "adminconsole:editlock"
	}
	return &RedisManager{
		client: client,
		prefix: normalized,
	}
}

func (m *RedisManager) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (Lock, bool, error) {
	resource, owner, ttl, err := normalize(resource, owner, ttl)
	if err != nil {
		return Lock{}, false, err
	}

	now := time.Now().UTC()
	acquired, err := acquireLockScript.Run(ctx, m.client, []string{m.lockKey(resource)}, owner, now.UnixMilli(), ttl.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return Lock{}, false, nil
	}
	if err != nil {
		return Lock{}, false, fmt.Errorf("edit lock acquire: %w", err)
	}
	return m.lock(resource, owner, acquired, now.Add(ttl)), true, nil
}

func (m *RedisManager) Renew(ctx context.Context, resource, owner string, ttl time.Duration) (Lock, bool, error) {
	resource, owner, ttl, err := normalize(resource, owner, ttl)
	if err != nil {
		return Lock{}, false, err
	}

	acquired, err := renewLockScript.Run(ctx, m.client, []string{m.lockKey(resource)}, owner, ttl.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return Lock{}, false, nil
	}
	if err != nil {
		return Lock{}, false, fmt.Errorf("edit lock renew: %w", err)
	}
	return m.lock(resource, owner, acquired, time.Now().UTC().Add(ttl)), true, nil
}

func (m *RedisManager) Release(ctx context.Context, resource, owner string) error {
	resource, owner, _, err := normalize(resource, owner, 0)
	if err != nil {
		return err
	}
	_, err = releaseLockScript.Run(ctx, m.client, []string{m.lockKey(resource)}, owner).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("edit lock release: %w", err)
	}
	return nil
}

func (m *RedisManager) Holders(ctx context.Context, resources []string) (map[string]Lock, error) {
	out := make(map[string]Lock, len(resources))
	if len(resources) == 0 {
		return out, nil
	}

	type pending struct {
		resource string
		fields   *redis.SliceCmd
		ttl      *redis.DurationCmd
	}
	pipe := m.client.Pipeline()
	cmds := make([]pending, 0, len(resources))
	for _, resource := range resources {
		resource = strings.TrimSpace(resource)
		if resource == "" {
			continue
		}
		key := m.lockKey(resource)
		cmds = append(cmds, pending{
			resource: resource,
			fields:   pipe.HMGet(ctx, key, "owner", "acquired"),
			ttl:      pipe.PTTL(ctx, key),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("edit lock holders: %w", err)
	}

	now := time.Now().UTC()
	for _, cmd := range cmds {
		values := cmd.fields.Val()
		if len(values) != 2 {
			continue
		}
		owner, _ := values[0].(string)
		if owner == "" {
			continue
		}
		acquired, _ := values[1].(string)
		ttl := cmd.ttl.Val()
		if ttl <= 0 {
			continue
		}
		out[cmd.resource] = m.lock(cmd.resource, owner, acquired, now.Add(ttl))
	}
	return out, nil
}

func (m *RedisManager) lock(resource, owner, acquiredMillis string, expiresAt time.Time) Lock {
	lock := Lock{Resource: resource, Owner: owner, ExpiresAt: expiresAt}
	if ms, err := strconv.ParseInt(acquiredMillis, 10, 64); err == nil {
		lock.AcquiredAt = time.UnixMilli(ms).UTC()
	}
	return lock
}

func (m *RedisManager) lockKey(resource string) string {
	return m.prefix + ":hold:" + resource
}

var acquireLockScript = redis.NewScript(`
local owner = redis.call("HGET", KEYS[1], "owner")
if not owner then
  redis.call("HSET", KEYS[1], "owner", ARGV[1], "acquired", ARGV[2])
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
  return ARGV[2]
end
if owner == ARGV[1] then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
  return redis.call("HGET", KEYS[1], "acquired")
end
return false
`)

var renewLockScript = redis.NewScript(`
local owner = redis.call("HGET", KEYS[1], "owner")
if owner == ARGV[1] then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return redis.call("HGET", KEYS[1], "acquired")
end
return false
`)

var releaseLockScript = redis.NewScript(`
local owner = redis.call("HGET", KEYS[1], "owner")
if owner == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
