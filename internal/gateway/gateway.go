// Package gateway is the client side of the admin backend: a kind-keyed
// request/response contract, its HTTP implementation, and typed adapters.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/VenkatGGG/admin-console/internal/catalog"
)

// RawPage is a listing response with undecoded records.
type RawPage struct {
	Data []json.RawMessage `json:"data"`
	Meta catalog.PageMeta  `json:"meta"`
}

// Gateway is the remote contract the console core depends on. The three lock
// calls are the only ones that report ErrConflict.
type Gateway interface {
	ListItems(ctx context.Context, kind catalog.Kind, query catalog.ListQuery) (RawPage, error)
	GetItem(ctx context.Context, kind catalog.Kind, id string) (json.RawMessage, error)
	CreateItem(ctx context.Context, kind catalog.Kind, payload any) (json.RawMessage, error)
	UpdateItem(ctx context.Context, kind catalog.Kind, id string, payload any) (json.RawMessage, error)
	DeleteItem(ctx context.Context, kind catalog.Kind, id string) error
	ToggleStatus(ctx context.Context, kind catalog.Kind, id string) (json.RawMessage, error)

	AcquireLock(ctx context.Context, kind catalog.Kind, id string) error
	ReleaseLock(ctx context.Context, kind catalog.Kind, id string) error
	MaintainLock(ctx context.Context, kind catalog.Kind, id string) error
}

// Resource decodes gateway responses for one kind into T.
type Resource[T any] struct {
	gw   Gateway
	kind catalog.Kind
}

func NewResource[T any](gw Gateway, kind catalog.Kind) *Resource[T] {
	return &Resource[T]{gw: gw, kind: kind}
}

func (r *Resource[T]) Kind() catalog.Kind { return r.kind }

func (r *Resource[T]) List(ctx context.Context, query catalog.ListQuery) (catalog.Page[T], error) {
	raw, err := r.gw.ListItems(ctx, r.kind, query)
	if err != nil {
		return catalog.Page[T]{}, err
	}
	items := make([]T, 0, len(raw.Data))
	for _, entry := range raw.Data {
		item, err := decode[T](r.op("list"), entry)
		if err != nil {
			return catalog.Page[T]{}, err
		}
		items = append(items, item)
	}
	return catalog.Page[T]{Data: items, Meta: raw.Meta}, nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	raw, err := r.gw.GetItem(ctx, r.kind, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](r.op("get"), raw)
}

func (r *Resource[T]) Create(ctx context.Context, payload any) (T, error) {
	raw, err := r.gw.CreateItem(ctx, r.kind, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](r.op("create"), raw)
}

func (r *Resource[T]) Update(ctx context.Context, id string, payload any) (T, error) {
	raw, err := r.gw.UpdateItem(ctx, r.kind, id, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](r.op("update"), raw)
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.gw.DeleteItem(ctx, r.kind, id)
}

func (r *Resource[T]) Toggle(ctx context.Context, id string) (T, error) {
	raw, err := r.gw.ToggleStatus(ctx, r.kind, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](r.op("toggle"), raw)
}

func (r *Resource[T]) op(name string) string {
	return fmt.Sprintf("%s %s", name, r.kind)
}

func decode[T any](op string, raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, transportError(op, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// Locks binds the lock endpoints of a gateway to one kind.
type Locks struct {
	gw   Gateway
	kind catalog.Kind
}

func NewLocks(gw Gateway, kind catalog.Kind) *Locks {
	return &Locks{gw: gw, kind: kind}
}

func (l *Locks) AcquireLock(ctx context.Context, id string) error {
	return l.gw.AcquireLock(ctx, l.kind, id)
}

func (l *Locks) ReleaseLock(ctx context.Context, id string) error {
	return l.gw.ReleaseLock(ctx, l.kind, id)
}

func (l *Locks) MaintainLock(ctx context.Context, id string) error {
	return l.gw.MaintainLock(ctx, l.kind, id)
}
