package api

import (
	"context"
	"net/http"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/inventory"
	"github.com/VenkatGGG/admin-console/pkg/httpx"
)

func (s *Server) handleVouchers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query, err := listQueryFrom(r, "isUsed", "eventId", "type")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	items, total, err := s.store.ListVouchers(r.Context(), query)
	if err != nil {
		s.writeStoreError(w, "list vouchers", err)
		return
	}
	attachLockInfo(r.Context(), s, catalog.KindVoucher, items, voucherLockInfo)
	writePage(w, items, query, total)
}

func (s *Server) handleVoucherByID(w http.ResponseWriter, r *http.Request) {
	id, rest := splitItemPath(r.URL.Path, "/vouchers/")
	if id == "" {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	if len(rest) == 0 {
		switch id {
		case "issue":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			s.handleIssueVoucher(w, r)
			return
		case "validate":
			s.handleValidateVoucher(w, r)
			return
		}
	}

	switch {
	case len(rest) == 0:
		s.handleVoucher(w, r, id)
	case len(rest) == 1 && rest[0] == "toggle-usage":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w)
			return
		}
		if !s.requireUnlocked(w, r, catalog.KindVoucher, id) {
			return
		}
		voucher, err := s.store.ToggleVoucherUsage(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, "toggle voucher usage", err)
			return
		}
		s.writeVoucher(r.Context(), w, http.StatusOK, voucher)
	case len(rest) == 2 && rest[0] == "editable":
		s.handleEditable(w, r, catalog.KindVoucher, id, rest[1], func(ctx context.Context) error {
			_, err := s.store.GetVoucher(ctx, id)
			return err
		})
	default:
		httpx.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) handleIssueVoucher(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	user := userFrom(r.Context())
	issue := func(w http.ResponseWriter) {
		var req catalog.CreateVoucherRequest
		if !decodeBody(w, body, &req) {
			return
		}
		voucher, err := s.store.IssueVoucher(r.Context(), req)
		if err != nil {
			s.writeStoreError(w, "issue voucher", err)
			return
		}
		s.logger.Printf("api voucher issued: id=%s event=%s by=%s", voucher.ID, voucher.EventID, user.ID)
		httpx.WriteJSON(w, http.StatusCreated, voucher)
	}
	if s.handleIdempotentRequest(w, r, "vouchers:issue:"+user.ID, body, issue) {
		return
	}
	issue(w)
}

func (s *Server) handleValidateVoucher(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req catalog.ValidateVoucherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := inventory.Validate(r.Context(), s.store, req, s.now())
	if err != nil {
		s.writeStoreError(w, "validate voucher", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleVoucher(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		voucher, err := s.store.GetVoucher(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, "get voucher", err)
			return
		}
		s.writeVoucher(r.Context(), w, http.StatusOK, voucher)
	case http.MethodPut:
		if !s.requireUnlocked(w, r, catalog.KindVoucher, id) {
			return
		}
		var req catalog.UpdateVoucherRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		voucher, err := s.store.UpdateVoucher(r.Context(), id, req)
		if err != nil {
			s.writeStoreError(w, "update voucher", err)
			return
		}
		s.writeVoucher(r.Context(), w, http.StatusOK, voucher)
	case http.MethodDelete:
		if !s.requireUnlocked(w, r, catalog.KindVoucher, id) {
			return
		}
		if err := s.store.DeleteVoucher(r.Context(), id); err != nil {
			s.writeStoreError(w, "delete voucher", err)
			return
		}
		s.dropLock(r, catalog.KindVoucher, id)
		s.logger.Printf("api voucher deleted: id=%s by=%s", id, userFrom(r.Context()).ID)
		httpx.WriteNoContent(w)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) writeVoucher(ctx context.Context, w http.ResponseWriter, status int, voucher catalog.Voucher) {
	items := []catalog.Voucher{voucher}
	attachLockInfo(ctx, s, catalog.KindVoucher, items, voucherLockInfo)
	httpx.WriteJSON(w, status, items[0])
}
