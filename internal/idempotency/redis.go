package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each recorded response as a hash (fingerprint, status,
// content type, headers, body) and each claim as a plain key holding the
// owner. A key that already has a recorded response cannot be claimed again,
// and the first recorded response wins.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "adminconsole:idempotency"
	}
	return &RedisStore{
		client: client,
		prefix: normalized,
	}
}

func (s *RedisStore) Get(ctx context.Context, scope, key string) (Entry, bool, error) {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return Entry{}, false, err
	}
	fields, err := s.client.HGetAll(ctx, s.recordKey(compound)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("idempotency get: %w", err)
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}
	entry, err := entryFromFields(fields)
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return entry, true, nil
}

func (s *RedisStore) Claim(ctx context.Context, scope, key, owner string, ttl time.Duration) (bool, error) {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return false, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return false, errors.New("owner is required")
	}
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	claimed, err := claimScript.Run(ctx, s.client,
		[]string{s.recordKey(compound), s.claimKey(compound)},
		owner, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return claimed == 1, nil
}

func (s *RedisStore) Save(ctx context.Context, scope, key string, entry Entry, ttl time.Duration) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	headers := ""
	if len(entry.Headers) > 0 {
		raw, err := json.Marshal(entry.Headers)
		if err != nil {
			return fmt.Errorf("encode idempotency headers: %w", err)
		}
		headers = string(raw)
	}
	err = saveScript.Run(ctx, s.client,
		[]string{s.recordKey(compound)},
		ttl.Milliseconds(), entry.Fingerprint, entry.StatusCode, entry.ContentType, headers, entry.Body,
	).Err()
	if err != nil {
		return fmt.Errorf("idempotency save: %w", err)
	}
	return nil
}

// Release drops the claim if owner still holds it.
func (s *RedisStore) Release(ctx context.Context, scope, key, owner string) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("owner is required")
	}
	if err := releaseScript.Run(ctx, s.client, []string{s.claimKey(compound)}, owner).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *RedisStore) recordKey(compound string) string {
	return s.prefix + ":record:" + compound
}

func (s *RedisStore) claimKey(compound string) string {
	return s.prefix + ":claim:" + compound
}

func entryFromFields(fields map[string]string) (Entry, error) {
	status, err := strconv.Atoi(fields["status"])
	if err != nil {
		return Entry{}, fmt.Errorf("status %q: %w", fields["status"], err)
	}
	entry := Entry{
		Fingerprint: fields["fingerprint"],
		StatusCode:  status,
		ContentType: fields["contentType"],
		Body:        []byte(fields["body"]),
	}
	if raw := fields["headers"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry.Headers); err != nil {
			return Entry{}, fmt.Errorf("headers: %w", err)
		}
	}
	return entry, nil
}

// KEYS[1] record hash, KEYS[2] claim key; ARGV owner, ttl ms.
var claimScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
if redis.call("SET", KEYS[2], ARGV[1], "NX", "PX", ARGV[2]) then
  return 1
end
return 0
`)

// KEYS[1] record hash; ARGV ttl ms, fingerprint, status, content type,
// headers json, body.
var saveScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "fingerprint", ARGV[2], "status", ARGV[3], "contentType", ARGV[4], "headers", ARGV[5], "body", ARGV[6])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
