// Package lease is the server side edit lock store: one owner per resource,
// held until released or until its TTL lapses without renewal.
package lease

import (
	"context"
	"errors"
	"strings"
	"time"
)

const DefaultTTL = 5 * time.Minute

type Lock struct {
	Resource   string    `json:"resource"`
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Manager grants edit locks. Acquire by the current owner refreshes the lock
// instead of failing. A false result with a nil error means the lock is held
// by someone else (Acquire) or is no longer held by owner (Renew).
type Manager interface {
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (Lock, bool, error)
	Renew(ctx context.Context, resource, owner string, ttl time.Duration) (Lock, bool, error)
	Release(ctx context.Context, resource, owner string) error
	Holders(ctx context.Context, resources []string) (map[string]Lock, error)
}

// Holder returns the live lock on resource, if any.
func Holder(ctx context.Context, m Manager, resource string) (Lock, bool, error) {
	holders, err := m.Holders(ctx, []string{resource})
	if err != nil {
		return Lock{}, false, err
	}
	lock, ok := holders[strings.TrimSpace(resource)]
	return lock, ok, nil
}

func normalize(resource, owner string, ttl time.Duration) (string, string, time.Duration, error) {
	resource = strings.TrimSpace(resource)
	owner = strings.TrimSpace(owner)
	if resource == "" {
		return "", "", 0, errors.New("resource is required")
	}
	if owner == "" {
		return "", "", 0, errors.New("owner is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return resource, owner, ttl, nil
}
