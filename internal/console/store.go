// Package console wires the gateway, the collection cache and the edit lock
// coordinator into the per-kind stores a UI layer reads from.
package console

import (
	"context"
	"errors"
	"strings"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/collection"
	"github.com/VenkatGGG/admin-console/internal/gateway"
)

// Store runs mutations against the server and, when they succeed, applies the
// matching delta to its cache. C and U are the create and update payloads.
type Store[T catalog.Item, C any, U any] struct {
	resource *gateway.Resource[T]
	cache    *collection.Cache[T]
	noun     string
}

func NewStore[T catalog.Item, C any, U any](gw gateway.Gateway, kind catalog.Kind, noun string, limit int) *Store[T, C, U] {
	resource := gateway.NewResource[T](gw, kind)
	return &Store[T, C, U]{
		resource: resource,
		cache:    collection.New[T](resource, limit),
		noun:     noun,
	}
}

// Cache exposes the mirrored page for reads.
func (s *Store[T, C, U]) Cache() *collection.Cache[T] { return s.cache }

func (s *Store[T, C, U]) Fetch(ctx context.Context, query catalog.ListQuery) error {
	err := s.cache.Load(ctx, query)
	switch {
	case errors.Is(err, collection.ErrSuperseded):
		// The newer load owns the page and the error slot.
		return nil
	case err != nil:
		s.fail(err, "fetch", s.noun+"s")
		return err
	}
	return nil
}

func (s *Store[T, C, U]) FetchOne(ctx context.Context, id string) (T, error) {
	item, err := s.cache.FetchOne(ctx, id)
	if err != nil {
		s.fail(err, "fetch", s.noun)
	}
	return item, err
}

func (s *Store[T, C, U]) Create(ctx context.Context, payload C) (T, error) {
	s.cache.ClearError()
	item, err := s.resource.Create(ctx, payload)
	if err != nil {
		s.fail(err, "create", s.noun)
		return item, err
	}
	s.cache.Insert(item)
	return item, nil
}

func (s *Store[T, C, U]) Update(ctx context.Context, id string, payload U) (T, error) {
	s.cache.ClearError()
	item, err := s.resource.Update(ctx, id, payload)
	if err != nil {
		s.fail(err, "update", s.noun)
		return item, err
	}
	s.cache.UpdateLocal(id, item)
	return item, nil
}

func (s *Store[T, C, U]) Delete(ctx context.Context, id string) error {
	s.cache.ClearError()
	if err := s.resource.Delete(ctx, id); err != nil {
		s.fail(err, "delete", s.noun)
		return err
	}
	s.cache.RemoveLocal(id)
	return nil
}

func (s *Store[T, C, U]) ToggleStatus(ctx context.Context, id string) (T, error) {
	s.cache.ClearError()
	item, err := s.resource.Toggle(ctx, id)
	if err != nil {
		s.fail(err, "toggle", s.noun+" status")
		return item, err
	}
	s.cache.UpdateLocal(id, item)
	return item, nil
}

func (s *Store[T, C, U]) fail(err error, verb, what string) {
	s.cache.SetError(err, "failed to "+verb+" "+strings.TrimSpace(what))
}
