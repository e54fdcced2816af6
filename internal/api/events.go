package api

import (
	"context"
	"net/http"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/pkg/httpx"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query, err := listQueryFrom(r, "isActive")
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		items, total, err := s.store.ListEvents(r.Context(), query)
		if err != nil {
			s.writeStoreError(w, "list events", err)
			return
		}
		attachLockInfo(r.Context(), s, catalog.KindEvent, items, eventLockInfo)
		writePage(w, items, query, total)
	case http.MethodPost:
		s.handleCreateEvent(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	user := userFrom(r.Context())
	create := func(w http.ResponseWriter) {
		var req catalog.CreateEventRequest
		if !decodeBody(w, body, &req) {
			return
		}
		event, err := s.store.CreateEvent(r.Context(), req)
		if err != nil {
			s.writeStoreError(w, "create event", err)
			return
		}
		s.logger.Printf("api event created: id=%s by=%s", event.ID, user.ID)
		httpx.WriteJSON(w, http.StatusCreated, event)
	}
	if s.handleIdempotentRequest(w, r, "events:create:"+user.ID, body, create) {
		return
	}
	create(w)
}

func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	id, rest := splitItemPath(r.URL.Path, "/events/")
	if id == "" {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	if id == "stats" && len(rest) == 0 {
		s.handleEventStats(w, r)
		return
	}

	switch {
	case len(rest) == 0:
		s.handleEvent(w, r, id)
	case len(rest) == 1 && rest[0] == "toggle":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w)
			return
		}
		if !s.requireUnlocked(w, r, catalog.KindEvent, id) {
			return
		}
		event, err := s.store.ToggleEvent(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, "toggle event", err)
			return
		}
		s.writeEvent(r.Context(), w, http.StatusOK, event)
	case len(rest) == 2 && rest[0] == "editable":
		s.handleEditable(w, r, catalog.KindEvent, id, rest[1], func(ctx context.Context) error {
			_, err := s.store.GetEvent(ctx, id)
			return err
		})
	default:
		httpx.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		event, err := s.store.GetEvent(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, "get event", err)
			return
		}
		s.writeEvent(r.Context(), w, http.StatusOK, event)
	case http.MethodPut:
		if !s.requireUnlocked(w, r, catalog.KindEvent, id) {
			return
		}
		var req catalog.UpdateEventRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		event, err := s.store.UpdateEvent(r.Context(), id, req)
		if err != nil {
			s.writeStoreError(w, "update event", err)
			return
		}
		s.writeEvent(r.Context(), w, http.StatusOK, event)
	case http.MethodDelete:
		if !s.requireUnlocked(w, r, catalog.KindEvent, id) {
			return
		}
		if err := s.store.DeleteEvent(r.Context(), id); err != nil {
			s.writeStoreError(w, "delete event", err)
			return
		}
		s.dropLock(r, catalog.KindEvent, id)
		s.logger.Printf("api event deleted: id=%s by=%s", id, userFrom(r.Context()).ID)
		httpx.WriteNoContent(w)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.store.EventStats(r.Context())
	if err != nil {
		s.writeStoreError(w, "event stats", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) writeEvent(ctx context.Context, w http.ResponseWriter, status int, event catalog.Event) {
	items := []catalog.Event{event}
	attachLockInfo(ctx, s, catalog.KindEvent, items, eventLockInfo)
	httpx.WriteJSON(w, status, items[0])
}

// dropLock releases the caller's lock on a record that no longer exists.
func (s *Server) dropLock(r *http.Request, kind catalog.Kind, id string) {
	if s.locks == nil {
		return
	}
	resource := lockResource(kind, id)
	if err := s.locks.Release(r.Context(), resource, userFrom(r.Context()).ID); err != nil {
		s.logger.Printf("api edit lock release failed: resource=%s err=%v", resource, err)
	}
}
