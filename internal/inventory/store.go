// Package inventory stores the events and vouchers served by the reference
// backend.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VenkatGGG/admin-console/internal/catalog"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
)

type Store interface {
	ListEvents(ctx context.Context, query catalog.ListQuery) ([]catalog.Event, int, error)
	GetEvent(ctx context.Context, id string) (catalog.Event, error)
	CreateEvent(ctx context.Context, req catalog.CreateEventRequest) (catalog.Event, error)
	UpdateEvent(ctx context.Context, id string, req catalog.UpdateEventRequest) (catalog.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ToggleEvent(ctx context.Context, id string) (catalog.Event, error)
	EventStats(ctx context.Context) (catalog.EventStats, error)

	ListVouchers(ctx context.Context, query catalog.ListQuery) ([]catalog.Voucher, int, error)
	GetVoucher(ctx context.Context, id string) (catalog.Voucher, error)
	FindVoucherByCode(ctx context.Context, code string) (catalog.Voucher, error)
	IssueVoucher(ctx context.Context, req catalog.CreateVoucherRequest) (catalog.Voucher, error)
	UpdateVoucher(ctx context.Context, id string, req catalog.UpdateVoucherRequest) (catalog.Voucher, error)
	DeleteVoucher(ctx context.Context, id string) error
	ToggleVoucherUsage(ctx context.Context, id string) (catalog.Voucher, error)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func newEvent(req catalog.CreateEventRequest, now time.Time) (catalog.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return catalog.Event{}, invalid("name is required")
	}
	if req.MaxQuantity <= 0 {
		return catalog.Event{}, invalid("maxQuantity must be positive")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return catalog.Event{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		MaxQuantity: req.MaxQuantity,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func applyEventUpdate(e catalog.Event, req catalog.UpdateEventRequest, now time.Time) (catalog.Event, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return catalog.Event{}, invalid("name cannot be empty")
		}
		e.Name = name
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if req.MaxQuantity != nil {
		if *req.MaxQuantity <= 0 {
			return catalog.Event{}, invalid("maxQuantity must be positive")
		}
		if *req.MaxQuantity < e.IssuedCount {
			return catalog.Event{}, invalid("maxQuantity cannot be below the %d vouchers already issued", e.IssuedCount)
		}
		e.MaxQuantity = *req.MaxQuantity
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	e.UpdatedAt = now
	return e, nil
}

// newVoucher validates req against the event it is issued for. The caller
// bumps the event's issued count.
func newVoucher(req catalog.CreateVoucherRequest, event catalog.Event, now time.Time) (catalog.Voucher, error) {
	if !event.IsActive {
		return catalog.Voucher{}, invalid("event %q is not active", event.Name)
	}
	if !event.HasCapacity() {
		return catalog.Voucher{}, invalid("event %q has no vouchers left", event.Name)
	}
	issueTo := strings.TrimSpace(req.IssueTo)
	if issueTo == "" {
		return catalog.Voucher{}, invalid("issueTo is required")
	}
	v := catalog.Voucher{
		ID:                 uuid.NewString(),
		EventID:            event.ID,
		Code:               newVoucherCode(),
		IssuedTo:           issueTo,
		RecipientName:      strings.TrimSpace(req.RecipientName),
		PhoneNumber:        strings.TrimSpace(req.PhoneNumber),
		Type:               req.Type,
		Value:              req.Value,
		UsageLimit:         req.UsageLimit,
		MinimumOrderAmount: req.MinimumOrderAmount,
		MaximumDiscount:    req.MaximumDiscount,
		ValidFrom:          req.ValidFrom,
		ValidTo:            req.ValidTo,
		Notes:              strings.TrimSpace(req.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if v.Type == "" {
		v.Type = catalog.DiscountPercentage
	}
	if err := checkVoucherTerms(v); err != nil {
		return catalog.Voucher{}, err
	}
	return v, nil
}

func applyVoucherUpdate(v catalog.Voucher, req catalog.UpdateVoucherRequest, now time.Time) (catalog.Voucher, error) {
	if req.IsUsed != nil {
		v.IsUsed = *req.IsUsed
	}
	if req.RecipientName != nil {
		v.RecipientName = strings.TrimSpace(*req.RecipientName)
	}
	if req.PhoneNumber != nil {
		v.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.Type != nil {
		v.Type = *req.Type
	}
	if req.Value != nil {
		v.Value = *req.Value
	}
	if req.UsageLimit != nil {
		v.UsageLimit = *req.UsageLimit
	}
	if req.MinimumOrderAmount != nil {
		v.MinimumOrderAmount = *req.MinimumOrderAmount
	}
	if req.MaximumDiscount != nil {
		v.MaximumDiscount = *req.MaximumDiscount
	}
	if req.ValidFrom != nil {
		v.ValidFrom = req.ValidFrom
	}
	if req.ValidTo != nil {
		v.ValidTo = req.ValidTo
	}
	if req.Notes != nil {
		v.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := checkVoucherTerms(v); err != nil {
		return catalog.Voucher{}, err
	}
	v.UpdatedAt = now
	return v, nil
}

func checkVoucherTerms(v catalog.Voucher) error {
	switch v.Type {
	case catalog.DiscountPercentage:
		if v.Value < 0 || v.Value > 100 {
			return invalid("percentage value must be between 0 and 100")
		}
	case catalog.DiscountFixed:
		if v.Value < 0 {
			return invalid("fixed value cannot be negative")
		}
	default:
		return invalid("unknown discount type %q", v.Type)
	}
	if v.UsageLimit < 0 {
		return invalid("usageLimit cannot be negative")
	}
	if v.MinimumOrderAmount < 0 || v.MaximumDiscount < 0 {
		return invalid("order amounts cannot be negative")
	}
	if v.ValidFrom != nil && v.ValidTo != nil && v.ValidTo.Before(*v.ValidFrom) {
		return invalid("validTo must not be before validFrom")
	}
	return nil
}

func newVoucherCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "VC-" + raw[:10]
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks whether a voucher code can be redeemed now for an order of
// orderAmount. An unusable code is reported in the result, not as an error.
func Validate(ctx context.Context, store Store, req catalog.ValidateVoucherRequest, now time.Time) (catalog.VoucherValidation, error) {
	if normalizeCode(req.Code) == "" {
		return catalog.VoucherValidation{}, invalid("code is required")
	}
	v, err := store.FindVoucherByCode(ctx, req.Code)
	if errors.Is(err, ErrNotFound) {
		return catalog.VoucherValidation{IsValid: false, Message: "voucher not found"}, nil
	}
	if err != nil {
		return catalog.VoucherValidation{}, err
	}

	reject := func(msg string) (catalog.VoucherValidation, error) {
		return catalog.VoucherValidation{IsValid: false, Voucher: &v, Message: msg}, nil
	}
	switch {
	case v.IsUsed:
		return reject("voucher has already been used")
	case !v.HasCapacity():
		return reject("voucher usage limit reached")
	case !v.ValidAt(now):
		return reject("voucher is not valid at this time")
	case !v.Event.IsActive:
		return reject("event is not active")
	case req.OrderAmount != nil && *req.OrderAmount < v.MinimumOrderAmount:
		return reject(fmt.Sprintf("order amount is below the minimum of %.2f", v.MinimumOrderAmount))
	}
	return catalog.VoucherValidation{IsValid: true, Voucher: &v, Message: "voucher is valid"}, nil
}

func matchesSearch(search string, fields ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
