package console

import (
	"context"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/editlock"
	"github.com/VenkatGGG/admin-console/internal/gateway"
)

type StatsSource interface {
	EventStats(ctx context.Context) (catalog.EventStats, error)
}

// EventStore is the event listing plus edit access for single events.
type EventStore struct {
	*Store[catalog.Event, catalog.CreateEventRequest, catalog.UpdateEventRequest]

	stats StatsSource
	locks *editlock.Coordinator
}

func NewEventStore(gw gateway.Gateway, stats StatsSource, locks *editlock.Coordinator, limit int) *EventStore {
	return &EventStore{
		Store: NewStore[catalog.Event, catalog.CreateEventRequest, catalog.UpdateEventRequest](gw, catalog.KindEvent, "event", limit),
		stats: stats,
		locks: locks,
	}
}

func (s *EventStore) Stats(ctx context.Context) (catalog.EventStats, error) {
	stats, err := s.stats.EventStats(ctx)
	if err != nil {
		s.fail(err, "fetch", "event stats")
		return catalog.EventStats{}, err
	}
	return stats, nil
}

// RequestEditAccess takes the edit lock on an event. A denial is reported in
// the grant, not as an error.
func (s *EventStore) RequestEditAccess(ctx context.Context, id string) (editlock.Grant, error) {
	grant, err := s.locks.Acquire(ctx, id)
	if err != nil {
		s.fail(err, "request", "edit access")
		return grant, err
	}
	return grant, nil
}

func (s *EventStore) ReleaseEditAccess(ctx context.Context, id string) {
	s.locks.Release(ctx, id)
}

// IsBeingEdited reports whether this client holds the edit lock on id.
func (s *EventStore) IsBeingEdited(id string) bool {
	return s.locks.IsHeld(id)
}

func (s *EventStore) IsLockedByOthers(event catalog.Event) bool {
	return s.locks.IsLockedByOther(event)
}

func (s *EventStore) EditingIDs() []string {
	return s.locks.HeldResourceIDs()
}
