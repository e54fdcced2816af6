// Package api is the reference admin backend: the REST contract the console
// gateway talks to, served over an inventory store and an edit lock store.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/idempotency"
	"github.com/VenkatGGG/admin-console/internal/inventory"
	"github.com/VenkatGGG/admin-console/internal/lease"
	"github.com/VenkatGGG/admin-console/pkg/httpx"
)

const maxPageLimit = 100

type Options struct {
	Store       inventory.Store
	Locks       lease.Manager
	Idempotency idempotency.Store
	Users       []User
	Logger      *log.Logger
	// Registry receives the HTTP and lock metrics and is served on /metrics.
	// A fresh registry is used when nil.
	Registry *prometheus.Registry

	LockTTL            time.Duration
	CreateRateLimit    int
	IdempotencyTTL     time.Duration
	IdempotencyLockTTL time.Duration
}

type Server struct {
	store       inventory.Store
	locks       lease.Manager
	idempotency idempotency.Store
	users       *userDirectory
	logger      *log.Logger
	registry    *prometheus.Registry
	metrics     *serverMetrics
	rateLimiter *fixedWindowLimiter
	now         func() time.Time

	lockTTL         time.Duration
	idempotencyTTL  time.Duration
	idempotencyLock time.Duration
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = lease.DefaultTTL
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = idempotency.DefaultTTL
	}
	if opts.IdempotencyLockTTL <= 0 {
		opts.IdempotencyLockTTL = idempotency.DefaultClaimTTL
	}
	s := &Server{
		store:           opts.Store,
		locks:           opts.Locks,
		idempotency:     opts.Idempotency,
		users:           newUserDirectory(opts.Users),
		logger:          opts.Logger,
		registry:        opts.Registry,
		metrics:         newServerMetrics(opts.Registry),
		now:             func() time.Time { return time.Now().UTC() },
		lockTTL:         opts.LockTTL,
		idempotencyTTL:  opts.IdempotencyTTL,
		idempotencyLock: opts.IdempotencyLockTTL,
	}
	if opts.CreateRateLimit > 0 {
		s.rateLimiter = newFixedWindowLimiter(opts.CreateRateLimit, time.Minute)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metricsHandler())
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/auth/me", s.handleMe)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/events/", s.handleEventByID)
	mux.HandleFunc("/vouchers", s.handleVouchers)
	mux.HandleFunc("/vouchers/", s.handleVoucherByID)

	return s.withMetrics(s.withAPISecurity(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, inventory.ErrInvalid):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), inventory.ErrInvalid.Error()+": "))
	default:
		s.logger.Printf("api %s failed: err=%v", op, err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", op+" failed")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	body, ok := readBody(w, r)
	return ok && decodeBody(w, body, out)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "request body could not be read")
		return nil, false
	}
	return body, true
}

func decodeBody(w http.ResponseWriter, body []byte, out any) bool {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "request body must be valid json: "+err.Error())
		return false
	}
	return true
}

func writePage[T any](w http.ResponseWriter, items []T, query catalog.ListQuery, total int) {
	if items == nil {
		items = []T{}
	}
	httpx.WriteJSON(w, http.StatusOK, catalog.Page[T]{Data: items, Meta: catalog.NewPageMeta(query.Page, query.Limit, total)})
}

func methodNotAllowed(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func listQueryFrom(r *http.Request, filters ...string) (catalog.ListQuery, error) {
	values := r.URL.Query()
	query := catalog.ListQuery{Search: strings.TrimSpace(values.Get("search"))}
	for _, field := range []struct {
		name string
		dst  *int
	}{{"page", &query.Page}, {"limit", &query.Limit}} {
		raw := strings.TrimSpace(values.Get(field.name))
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return catalog.ListQuery{}, errors.New(field.name + " must be a positive integer")
		}
		*field.dst = parsed
	}
	if query.Limit > maxPageLimit {
		query.Limit = maxPageLimit
	}
	for _, name := range filters {
		if raw := strings.TrimSpace(values.Get(name)); raw != "" {
			query = query.With(name, raw)
		}
	}
	return query.Normalize(), nil
}

// splitItemPath turns "/events/{id}/rest..." into id and the remaining parts.
func splitItemPath(path, prefix string) (string, []string) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", nil
	}
	parts := strings.Split(rest, "/")
	return strings.TrimSpace(parts[0]), parts[1:]
}
