package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VenkatGGG/admin-console/internal/idempotency"
	"github.com/VenkatGGG/admin-console/pkg/httpx"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
)

// handleIdempotentRequest runs execute at most once per scope and key. It
// returns false when the request carries no key and the caller should
// handle it directly. body is the already read request body.
func (s *Server) handleIdempotentRequest(w http.ResponseWriter, r *http.Request, scope string, body []byte, execute func(http.ResponseWriter)) bool {
	if s.idempotency == nil {
		return false
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		return false
	}
	fingerprint := idempotency.Fingerprint([]byte(r.Method), []byte(r.URL.Path), body)

	if cached, ok, err := s.idempotency.Get(r.Context(), scope, key); err == nil && ok {
		s.replayIdempotentEntry(w, cached, fingerprint)
		return true
	} else if err != nil {
		s.logger.Printf("api idempotency lookup failed: scope=%s err=%v", scope, err)
		httpx.WriteError(w, http.StatusInternalServerError, "idempotency_failed", "idempotency lookup failed")
		return true
	}

	owner := "idem-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	claimed, err := s.idempotency.Claim(r.Context(), scope, key, owner, s.idempotencyLock)
	if err != nil {
		s.logger.Printf("api idempotency claim failed: scope=%s err=%v", scope, err)
		httpx.WriteError(w, http.StatusInternalServerError, "idempotency_failed", "idempotency claim failed")
		return true
	}
	if !claimed {
		if cached, ok, err := s.waitForIdempotentEntry(r.Context(), scope, key, 4*time.Second); err == nil && ok {
			s.replayIdempotentEntry(w, cached, fingerprint)
			return true
		}
		httpx.WriteError(w, http.StatusConflict, "request_in_progress", "another request with this idempotency key is still in progress")
		return true
	}
	defer func() {
		_ = s.idempotency.Release(context.Background(), scope, key, owner)
	}()

	rec := httptest.NewRecorder()
	execute(rec)

	result := rec.Result()
	defer result.Body.Close()
	respBody, _ := io.ReadAll(result.Body)

	entry := idempotency.Entry{
		Fingerprint: fingerprint,
		StatusCode:  result.StatusCode,
		ContentType: result.Header.Get("Content-Type"),
		Body:        bytes.Clone(respBody),
	}
	// Server failures are not recorded so the client can retry with the same key.
	if result.StatusCode < 500 {
		if err := s.idempotency.Save(context.Background(), scope, key, entry, s.idempotencyTTL); err != nil {
			s.logger.Printf("api idempotency save failed: scope=%s err=%v", scope, err)
		}
	}
	copyResponse(w, result.Header, result.StatusCode, respBody)
	return true
}

func (s *Server) waitForIdempotentEntry(ctx context.Context, scope, key string, timeout time.Duration) (idempotency.Entry, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		entry, ok, err := s.idempotency.Get(waitCtx, scope, key)
		if err != nil {
			return idempotency.Entry{}, false, err
		}
		if ok {
			return entry, true, nil
		}

		select {
		case <-waitCtx.Done():
			return idempotency.Entry{}, false, waitCtx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) replayIdempotentEntry(w http.ResponseWriter, entry idempotency.Entry, fingerprint string) {
	if entry.Fingerprint != "" && entry.Fingerprint != fingerprint {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "idempotency_key_reused", "idempotency key was already used for a different request")
		return
	}
	contentType := strings.TrimSpace(entry.ContentType)
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set(idempotencyReplayHeader, "true")
	status := entry.StatusCode
	if status <= 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(entry.Body)
}

func copyResponse(w http.ResponseWriter, header http.Header, status int, body []byte) {
	for key, values := range header {
		w.Header().Del(key)
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if status <= 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
