// Package catalog holds the records the admin console manages and the paging
// envelope the backend wraps them in.
package catalog

import (
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindEvent   Kind = "events"
	KindVoucher Kind = "vouchers"
)

// Item is a server-owned record that can be mirrored in a collection page.
type Item interface {
	ItemID() string
	Active() bool
	HasCapacity() bool
	// LockHolder is the actor currently holding the edit lock, or "".
	LockHolder() string
}

type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPageMeta derives the navigation fields for a page of a listing with total
// records.
func NewPageMeta(page, limit, total int) PageMeta {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

const DefaultLimit = 10

// ListQuery selects one page of a listing. Filter carries kind specific
// parameters such as isActive, isUsed, eventId or type.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
	Filter map[string]string
}

func (q ListQuery) With(key, value string) ListQuery {
	next := make(map[string]string, len(q.Filter)+1)
	for k, v := range q.Filter {
		next[k] = v
	}
	next[key] = value
	q.Filter = next
	return q
}

func (q ListQuery) WithBool(key string, value bool) ListQuery {
	return q.With(key, strconv.FormatBool(value))
}

// BoolFilter reports the parsed value of a boolean filter and whether it was set.
func (q ListQuery) BoolFilter(key string) (bool, bool) {
	raw := strings.TrimSpace(q.Filter[key])
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}

func (q ListQuery) Normalize() ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Offset is the number of records preceding the requested page.
func (q ListQuery) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.Limit
}

type LockInfo struct {
	EditingBy  string     `json:"editingBy,omitempty"`
	EditLockAt *time.Time `json:"editLockAt,omitempty"`
}

func (l LockInfo) LockHolder() string { return l.EditingBy }
