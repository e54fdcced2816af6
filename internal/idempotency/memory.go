package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
)

type record struct {
	entry      Entry
	hasEntry   bool
	expiresAt  time.Time
	claimOwner string
	claimUntil time.Time
}

type InMemoryStore struct {
	clock clock.Clock

	mu      sync.Mutex
	records map[string]*record
}

func NewInMemoryStore(clk clock.Clock) *InMemoryStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &InMemoryStore{
		clock:   clk,
		records: make(map[string]*record),
	}
}

func (s *InMemoryStore) Get(_ context.Context, scope, key string) (Entry, bool, error) {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return Entry{}, false, err
	}

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[compound]
	if rec == nil || !rec.hasEntry {
		return Entry{}, false, nil
	}
	if now.After(rec.expiresAt) {
		rec.entry, rec.hasEntry = Entry{}, false
		s.pruneLocked(compound, now)
		return Entry{}, false, nil
	}
	return cloneEntry(rec.entry), true, nil
}

// Claim fails while another owner holds the claim or once a response has been
// recorded for the key.
func (s *InMemoryStore) Claim(_ context.Context, scope, key, owner string, ttl time.Duration) (bool, error) {
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

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[compound]
	if rec == nil {
		rec = &record{}
		s.records[compound] = rec
	}
	if rec.hasEntry && now.Before(rec.expiresAt) {
		return false, nil
	}
	if rec.claimOwner != "" && now.Before(rec.claimUntil) {
		return false, nil
	}
	rec.claimOwner = owner
	rec.claimUntil = now.Add(ttl)
	return true, nil
}

// Save records entry unless a live entry already exists; the first one wins.
func (s *InMemoryStore) Save(_ context.Context, scope, key string, entry Entry, ttl time.Duration) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[compound]
	if rec == nil {
		rec = &record{}
		s.records[compound] = rec
	}
	if rec.hasEntry && now.Before(rec.expiresAt) {
		return nil
	}
	rec.entry = cloneEntry(entry)
	rec.hasEntry = true
	rec.expiresAt = now.Add(ttl)
	return nil
}

// Release drops the claim if owner still holds it.
func (s *InMemoryStore) Release(_ context.Context, scope, key, owner string) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("owner is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[compound]
	if rec == nil || rec.claimOwner != owner {
		return nil
	}
	rec.claimOwner = ""
	rec.claimUntil = time.Time{}
	s.pruneLocked(compound, s.clock.Now())
	return nil
}

func (s *InMemoryStore) pruneLocked(compound string, now time.Time) {
	rec := s.records[compound]
	if rec == nil || rec.hasEntry {
		return
	}
	if rec.claimOwner == "" || !now.Before(rec.claimUntil) {
		delete(s.records, compound)
	}
}
