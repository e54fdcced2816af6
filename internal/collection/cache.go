// Package collection mirrors one page of a server-owned listing and applies
// local deltas after mutations succeed on the server.
package collection

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/gateway"
)

// ErrSuperseded is returned by a load whose response arrived after a newer
// load was issued. Its response, success or failure, was not applied.
var ErrSuperseded = errors.New("load superseded by a newer load")

type Source[T catalog.Item] interface {
	List(ctx context.Context, query catalog.ListQuery) (catalog.Page[T], error)
	Get(ctx context.Context, id string) (T, error)
}

type deltaOp int

const (
	opInsert deltaOp = iota
	opUpdate
	opRemove
)

type delta[T catalog.Item] struct {
	op   deltaOp
	id   string
	item T
}

// Cache holds the last loaded page, its metadata, a "current item" slot and
// the last error. The page is replaced wholesale by Load and patched by
// Insert, UpdateLocal and RemoveLocal.
//
// Loads are ordered by issue: a response from a load that has since been
// superseded is dropped. Deltas applied while the latest load is in flight
// are replayed over its response when it lands.
type Cache[T catalog.Item] struct {
	source Source[T]

	mu         sync.Mutex
	items      []T
	meta       catalog.PageMeta
	current    T
	hasCurrent bool
	lastErr    string
	loadSeq    uint64
	inflight   int
	journal    []delta[T]
}

func New[T catalog.Item](source Source[T], limit int) *Cache[T] {
	if limit <= 0 {
		limit = catalog.DefaultLimit
	}
	return &Cache[T]{
		source: source,
		items:  []T{},
		meta:   catalog.PageMeta{Page: 1, Limit: limit},
	}
}

// Load fetches one page. Page and limit default to the cached ones. On
// failure the items are emptied so a stale page is never shown silently.
// A superseded load changes nothing and returns ErrSuperseded.
func (c *Cache[T]) Load(ctx context.Context, query catalog.ListQuery) error {
	c.mu.Lock()
	if query.Page <= 0 {
		query.Page = c.meta.Page
	}
	if query.Limit <= 0 {
		query.Limit = c.meta.Limit
	}
	c.loadSeq++
	seq := c.loadSeq
	mark := len(c.journal)
	c.inflight++
	c.lastErr = ""
	c.mu.Unlock()

	page, err := c.source.List(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.finishLoadLocked()

	if seq != c.loadSeq {
		if err != nil {
			return errors.Join(ErrSuperseded, err)
		}
		return ErrSuperseded
	}
	if err != nil {
		c.items = []T{}
		c.lastErr = errorText(err, "failed to fetch items")
		return err
	}

	c.items = append([]T{}, page.Data...)
	c.meta = normalizeMeta(page.Meta, query)
	for _, d := range c.journal[mark:] {
		c.replayLocked(d)
	}
	return nil
}

func (c *Cache[T]) finishLoadLocked() {
	c.inflight--
	if c.inflight == 0 {
		c.journal = nil
	}
}

// FetchOne loads a single item into the current slot without touching the
// page.
func (c *Cache[T]) FetchOne(ctx context.Context, id string) (T, error) {
	c.ClearError()
	item, err := c.source.Get(ctx, id)
	if err != nil {
		c.SetError(err, "failed to fetch item")
		var zero T
		return zero, err
	}
	c.mu.Lock()
	c.current = item
	c.hasCurrent = true
	c.mu.Unlock()
	return item, nil
}

// Insert prepends item and bumps the total. TotalPages, HasNext and HasPrev
// are left as loaded; reload for exact pagination.
func (c *Cache[T]) Insert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T{item}, c.items...)
	c.meta.Total++
	c.recordLocked(delta[T]{op: opInsert, id: item.ItemID(), item: item})
}

// UpdateLocal replaces the item with the given id in the page and in the
// current slot. An id missing from the page is not an error.
func (c *Cache[T]) UpdateLocal(id string, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(id, item)
	if c.hasCurrent && c.current.ItemID() == id {
		c.current = item
	}
	c.recordLocked(delta[T]{op: opUpdate, id: id, item: item})
}

// RemoveLocal drops the item with the given id, decrements the total and
// clears the current slot if it held the same item.
func (c *Cache[T]) RemoveLocal(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
	c.meta.Total--
	if c.hasCurrent && c.current.ItemID() == id {
		var zero T
		c.current = zero
		c.hasCurrent = false
	}
	c.recordLocked(delta[T]{op: opRemove, id: id})
}

func (c *Cache[T]) recordLocked(d delta[T]) {
	if c.inflight > 0 {
		c.journal = append(c.journal, d)
	}
}

// replayLocked re-applies a delta over a freshly loaded page, skipping the
// parts the server response already reflects.
func (c *Cache[T]) replayLocked(d delta[T]) {
	switch d.op {
	case opInsert:
		if c.indexLocked(d.id) >= 0 {
			return
		}
		c.items = append([]T{d.item}, c.items...)
		c.meta.Total++
	case opUpdate:
		c.replaceLocked(d.id, d.item)
	case opRemove:
		if c.removeLocked(d.id) {
			c.meta.Total--
		}
	}
}

func (c *Cache[T]) replaceLocked(id string, item T) {
	if idx := c.indexLocked(id); idx >= 0 {
		c.items[idx] = item
	}
}

func (c *Cache[T]) removeLocked(id string) bool {
	kept := make([]T, 0, len(c.items))
	removed := false
	for _, item := range c.items {
		if item.ItemID() == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.items = kept
	return removed
}

func (c *Cache[T]) indexLocked(id string) int {
	for i, item := range c.items {
		if item.ItemID() == id {
			return i
		}
	}
	return -1
}

func (c *Cache[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T{}, c.items...)
}

func (c *Cache[T]) Meta() catalog.PageMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

func (c *Cache[T]) Total() int {
	return c.Meta().Total
}

// TotalPages prefers the server's figure and falls back to total/limit.
func (c *Cache[T]) TotalPages() int {
	meta := c.Meta()
	if meta.TotalPages > 0 {
		return meta.TotalPages
	}
	if meta.Limit <= 0 || meta.Total <= 0 {
		return 0
	}
	return (meta.Total + meta.Limit - 1) / meta.Limit
}

func (c *Cache[T]) Current() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.hasCurrent
}

func (c *Cache[T]) ClearCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.current = zero
	c.hasCurrent = false
}

// Loading reports whether a load is in flight.
func (c *Cache[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

func (c *Cache[T]) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SetError records a display message for err, using fallback when err has
// none.
func (c *Cache[T]) SetError(err error, fallback string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = errorText(err, fallback)
}

func (c *Cache[T]) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = ""
}

func normalizeMeta(meta catalog.PageMeta, query catalog.ListQuery) catalog.PageMeta {
	if meta.Page <= 0 {
		meta.Page = query.Page
	}
	if meta.Limit <= 0 {
		meta.Limit = query.Limit
	}
	if meta.Total < 0 {
		meta.Total = 0
	}
	return meta
}

func errorText(err error, fallback string) string {
	msg := strings.TrimSpace(gateway.Message(err))
	if msg == "" {
		return fallback
	}
	return msg
}
