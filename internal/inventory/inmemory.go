package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VenkatGGG/admin-console/internal/catalog"
)

type InMemoryStore struct {
	now func() time.Time

	mu       sync.RWMutex
	events   map[string]catalog.Event
	vouchers map[string]catalog.Voucher
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		now:      func() time.Time { return time.Now().UTC() },
		events:   make(map[string]catalog.Event),
		vouchers: make(map[string]catalog.Voucher),
	}
}

func (s *InMemoryStore) ListEvents(_ context.Context, query catalog.ListQuery) ([]catalog.Event, int, error) {
	query = query.Normalize()
	active, filterActive := query.BoolFilter("isActive")

	s.mu.RLock()
	matched := make([]catalog.Event, 0, len(s.events))
	for _, e := range s.events {
		if filterActive && e.IsActive != active {
			continue
		}
		if !matchesSearch(query.Search, e.Name, e.Description) {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	return paginate(matched, query), len(matched), nil
}

func (s *InMemoryStore) GetEvent(_ context.Context, id string) (catalog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[strings.TrimSpace(id)]
	if !ok {
		return catalog.Event{}, notFound("event")
	}
	return e, nil
}

func (s *InMemoryStore) CreateEvent(_ context.Context, req catalog.CreateEventRequest) (catalog.Event, error) {
	e, err := newEvent(req, s.now())
	if err != nil {
		return catalog.Event{}, err
	}
	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()
	return e, nil
}

func (s *InMemoryStore) UpdateEvent(_ context.Context, id string, req catalog.UpdateEventRequest) (catalog.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[strings.TrimSpace(id)]
	if !ok {
		return catalog.Event{}, notFound("event")
	}
	updated, err := applyEventUpdate(e, req, s.now())
	if err != nil {
		return catalog.Event{}, err
	}
	s.events[updated.ID] = updated
	return updated, nil
}

// DeleteEvent removes the event and every voucher issued for it.
func (s *InMemoryStore) DeleteEvent(_ context.Context, id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return notFound("event")
	}
	delete(s.events, id)
	for vid, v := range s.vouchers {
		if v.EventID == id {
			delete(s.vouchers, vid)
		}
	}
	return nil
}

func (s *InMemoryStore) ToggleEvent(_ context.Context, id string) (catalog.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[strings.TrimSpace(id)]
	if !ok {
		return catalog.Event{}, notFound("event")
	}
	e.IsActive = !e.IsActive
	e.UpdatedAt = s.now()
	s.events[e.ID] = e
	return e, nil
}

func (s *InMemoryStore) EventStats(_ context.Context) (catalog.EventStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats catalog.EventStats
	for _, e := range s.events {
		stats.TotalEvents++
		if e.IsActive {
			stats.ActiveEvents++
		} else {
			stats.InactiveEvents++
		}
		stats.TotalIssued += e.IssuedCount
		stats.TotalAvailable += e.Remaining()
	}
	return stats, nil
}

func (s *InMemoryStore) ListVouchers(_ context.Context, query catalog.ListQuery) ([]catalog.Voucher, int, error) {
	query = query.Normalize()
	used, filterUsed := query.BoolFilter("isUsed")
	eventID := strings.TrimSpace(query.Filter["eventId"])
	discountType := catalog.DiscountType(strings.TrimSpace(query.Filter["type"]))

	s.mu.RLock()
	matched := make([]catalog.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		if filterUsed && v.IsUsed != used {
			continue
		}
		if eventID != "" && v.EventID != eventID {
			continue
		}
		if discountType != "" && v.Type != discountType {
			continue
		}
		if !matchesSearch(query.Search, v.Code, v.IssuedTo, v.RecipientName) {
			continue
		}
		matched = append(matched, s.withEventLocked(v))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	return paginate(matched, query), len(matched), nil
}

func (s *InMemoryStore) GetVoucher(_ context.Context, id string) (catalog.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[strings.TrimSpace(id)]
	if !ok {
		return catalog.Voucher{}, notFound("voucher")
	}
	return s.withEventLocked(v), nil
}

func (s *InMemoryStore) FindVoucherByCode(_ context.Context, code string) (catalog.Voucher, error) {
	code = normalizeCode(code)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vouchers {
		if v.Code == code {
			return s.withEventLocked(v), nil
		}
	}
	return catalog.Voucher{}, notFound("voucher")
}

func (s *InMemoryStore) IssueVoucher(_ context.Context, req catalog.CreateVoucherRequest) (catalog.Voucher, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[strings.TrimSpace(req.EventID)]
	if !ok {
		return catalog.Voucher{}, notFound("event")
	}
	v, err := newVoucher(req, event, now)
	if err != nil {
		return catalog.Voucher{}, err
	}
	event.IssuedCount++
	event.UpdatedAt = now
	s.events[event.ID] = event
	s.vouchers[v.ID] = v
	return s.withEventLocked(v), nil
}

func (s *InMemoryStore) UpdateVoucher(_ context.Context, id string, req catalog.UpdateVoucherRequest) (catalog.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[strings.TrimSpace(id)]
	if !ok {
		return catalog.Voucher{}, notFound("voucher")
	}
	updated, err := applyVoucherUpdate(v, req, s.now())
	if err != nil {
		return catalog.Voucher{}, err
	}
	s.vouchers[updated.ID] = updated
	return s.withEventLocked(updated), nil
}

// DeleteVoucher removes the voucher and returns its slot to the event.
func (s *InMemoryStore) DeleteVoucher(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[strings.TrimSpace(id)]
	if !ok {
		return notFound("voucher")
	}
	delete(s.vouchers, v.ID)
	if e, ok := s.events[v.EventID]; ok && e.IssuedCount > 0 {
		e.IssuedCount--
		e.UpdatedAt = s.now()
		s.events[e.ID] = e
	}
	return nil
}

func (s *InMemoryStore) ToggleVoucherUsage(_ context.Context, id string) (catalog.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[strings.TrimSpace(id)]
	if !ok {
		return catalog.Voucher{}, notFound("voucher")
	}
	v.IsUsed = !v.IsUsed
	v.UpdatedAt = s.now()
	s.vouchers[v.ID] = v
	return s.withEventLocked(v), nil
}

func (s *InMemoryStore) withEventLocked(v catalog.Voucher) catalog.Voucher {
	if e, ok := s.events[v.EventID]; ok {
		v.Event = catalog.SummarizeEvent(e)
	}
	return v
}

func newerFirst(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}

func paginate[T any](items []T, query catalog.ListQuery) []T {
	start := query.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + query.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
