// Package idempotency records the response to a create request under its
// Idempotency-Key so a retried request is answered from the record instead of
// creating a second resource.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const (
	DefaultTTL      = 24 * time.Hour
	DefaultClaimTTL = 30 * time.Second
)

// Entry is a recorded response. Fingerprint identifies the request that
// produced it, so a key reused for a different request can be refused.
type Entry struct {
	Fingerprint string              `json:"fingerprint"`
	StatusCode  int                 `json:"statusCode"`
	ContentType string              `json:"contentType"`
	Headers     map[string][]string `json:"headers,omitempty"`
	Body        []byte              `json:"body"`
}

// Store keeps responses and the short-lived claims that serialize concurrent
// requests carrying the same key. Claim returns false while another owner
// holds the claim.
type Store interface {
	Get(ctx context.Context, scope, key string) (Entry, bool, error)
	Claim(ctx context.Context, scope, key, owner string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, scope, key string, entry Entry, ttl time.Duration) error
	Release(ctx context.Context, scope, key, owner string) error
}

// Fingerprint hashes the parts of a request that must match on replay.
func Fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = h.Write(part)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func compoundKey(scope, key string) (string, error) {
	scope = strings.TrimSpace(scope)
	key = strings.TrimSpace(key)
	if scope == "" {
		return "", errors.New("scope is required")
	}
	if key == "" {
		return "", errors.New("key is required")
	}
	sum := sha256.Sum256([]byte(scope + "|" + key))
	return scope + ":" + hex.EncodeToString(sum[:]), nil
}

func cloneEntry(entry Entry) Entry {
	out := entry
	out.Body = append([]byte(nil), entry.Body...)
	if len(entry.Headers) > 0 {
		out.Headers = make(map[string][]string, len(entry.Headers))
		for key, values := range entry.Headers {
			out.Headers[key] = append([]string(nil), values...)
		}
	}
	return out
}
