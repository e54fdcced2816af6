package lease

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
)

type InMemoryManager struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]Lock
}

func NewInMemoryManager(clk clock.Clock) *InMemoryManager {
	if clk == nil {
		clk = clock.WallClock
	}
	return &InMemoryManager{
		clock:   clk,
		entries: make(map[string]Lock),
	}
}

func (m *InMemoryManager) Acquire(_ context.Context, resource, owner string, ttl time.Duration) (Lock, bool, error) {
	resource, owner, ttl, err := normalize(resource, owner, ttl)
	if err != nil {
		return Lock{}, false, err
	}

	now := m.clock.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.liveLocked(resource, now)
	if ok && existing.Owner != owner {
		return Lock{}, false, nil
	}
	lock := Lock{Resource: resource, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	if ok {
		lock.AcquiredAt = existing.AcquiredAt
	}
	m.entries[resource] = lock
	return lock, true, nil
}

func (m *InMemoryManager) Renew(_ context.Context, resource, owner string, ttl time.Duration) (Lock, bool, error) {
	resource, owner, ttl, err := normalize(resource, owner, ttl)
	if err != nil {
		return Lock{}, false, err
	}

	now := m.clock.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.liveLocked(resource, now)
	if !ok || existing.Owner != owner {
		return Lock{}, false, nil
	}
	existing.ExpiresAt = now.Add(ttl)
	m.entries[resource] = existing
	return existing, true, nil
}

// Release is a no-op unless owner holds the lock.
func (m *InMemoryManager) Release(_ context.Context, resource, owner string) error {
	resource, owner, _, err := normalize(resource, owner, 0)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[resource]; ok && existing.Owner == owner {
		delete(m.entries, resource)
	}
	return nil
}

func (m *InMemoryManager) Holders(_ context.Context, resources []string) (map[string]Lock, error) {
	now := m.clock.Now().UTC()
	out := make(map[string]Lock, len(resources))

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, resource := range resources {
		resource = strings.TrimSpace(resource)
		if lock, ok := m.liveLocked(resource, now); ok {
			out[resource] = lock
		}
	}
	return out, nil
}

func (m *InMemoryManager) liveLocked(resource string, now time.Time) (Lock, bool) {
	existing, ok := m.entries[resource]
	if !ok {
		return Lock{}, false
	}
	if !now.Before(existing.ExpiresAt) {
		delete(m.entries, resource)
		return Lock{}, false
	}
	return existing, true
}
