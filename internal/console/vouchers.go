package console

import (
	"context"
	"errors"
	"strings"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/gateway"
)

type VoucherValidator interface {
	ValidateVoucher(ctx context.Context, req catalog.ValidateVoucherRequest) (catalog.VoucherValidation, error)
}

type VoucherStore struct {
	*Store[catalog.Voucher, catalog.CreateVoucherRequest, catalog.UpdateVoucherRequest]

	validator VoucherValidator
}

func NewVoucherStore(gw gateway.Gateway, validator VoucherValidator, limit int) *VoucherStore {
	return &VoucherStore{
		Store:     NewStore[catalog.Voucher, catalog.CreateVoucherRequest, catalog.UpdateVoucherRequest](gw, catalog.KindVoucher, "voucher", limit),
		validator: validator,
	}
}

// Validate checks a voucher code, optionally against an order amount. An
// invalid code is a normal result with IsValid false.
func (s *VoucherStore) Validate(ctx context.Context, code string, orderAmount *float64) (catalog.VoucherValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return catalog.VoucherValidation{}, errors.New("voucher code is required")
	}
	result, err := s.validator.ValidateVoucher(ctx, catalog.ValidateVoucherRequest{Code: code, OrderAmount: orderAmount})
	if err != nil {
		s.fail(err, "validate", "voucher")
		return catalog.VoucherValidation{}, err
	}
	return result, nil
}

func (s *VoucherStore) Used() []catalog.Voucher {
	return s.cache.Inactive()
}

func (s *VoucherStore) Unused() []catalog.Voucher {
	return s.cache.Active()
}

// ActiveEventVouchers lists the loaded vouchers whose event is active.
func (s *VoucherStore) ActiveEventVouchers() []catalog.Voucher {
	return s.cache.Filter(func(v catalog.Voucher) bool { return v.Event.IsActive })
}
