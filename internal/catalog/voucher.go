package catalog

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// EventSummary is the event snapshot embedded in voucher responses.
type EventSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MaxQuantity int       `json:"maxQuantity"`
	IssuedCount int       `json:"issuedCount"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func SummarizeEvent(e Event) EventSummary {
	return EventSummary{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		MaxQuantity: e.MaxQuantity,
		IssuedCount: e.IssuedCount,
		IsActive:    e.IsActive,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

type Voucher struct {
	ID                 string       `json:"id"`
	EventID            string       `json:"eventId"`
	Code               string       `json:"code"`
	IssuedTo           string       `json:"issuedTo"`
	RecipientName      string       `json:"recipientName,omitempty"`
	PhoneNumber        string       `json:"phoneNumber,omitempty"`
	IsUsed             bool         `json:"isUsed"`
	Type               DiscountType `json:"type,omitempty"`
	Value              float64      `json:"value,omitempty"`
	UsageLimit         int          `json:"usageLimit,omitempty"`
	UsedCount          int          `json:"usedCount,omitempty"`
	MinimumOrderAmount float64      `json:"minimumOrderAmount,omitempty"`
	MaximumDiscount    float64      `json:"maximumDiscount,omitempty"`
	ValidFrom          *time.Time   `json:"validFrom,omitempty"`
	ValidTo            *time.Time   `json:"validTo,omitempty"`
	Notes              string       `json:"notes,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
	Event              EventSummary `json:"event"`
	LockInfo
}

func (v Voucher) ItemID() string { return v.ID }

func (v Voucher) Active() bool { return !v.IsUsed }

// HasCapacity reports whether the voucher can still be redeemed. A zero usage
// limit means unlimited.
func (v Voucher) HasCapacity() bool {
	return v.UsageLimit == 0 || v.UsedCount < v.UsageLimit
}

// ValidAt reports whether t falls inside the voucher's validity window.
func (v Voucher) ValidAt(t time.Time) bool {
	if v.ValidFrom != nil && t.Before(*v.ValidFrom) {
		return false
	}
	if v.ValidTo != nil && t.After(*v.ValidTo) {
		return false
	}
	return true
}

type CreateVoucherRequest struct {
	EventID            string       `json:"eventId"`
	IssueTo            string       `json:"issueTo"`
	RecipientName      string       `json:"recipientName,omitempty"`
	PhoneNumber        string       `json:"phoneNumber,omitempty"`
	Type               DiscountType `json:"type,omitempty"`
	Value              float64      `json:"value,omitempty"`
	UsageLimit         int          `json:"usageLimit,omitempty"`
	MinimumOrderAmount float64      `json:"minimumOrderAmount,omitempty"`
	MaximumDiscount    float64      `json:"maximumDiscount,omitempty"`
	ValidFrom          *time.Time   `json:"validFrom,omitempty"`
	ValidTo            *time.Time   `json:"validTo,omitempty"`
	Notes              string       `json:"notes,omitempty"`
}

type UpdateVoucherRequest struct {
	IsUsed             *bool         `json:"isUsed,omitempty"`
	RecipientName      *string       `json:"recipientName,omitempty"`
	PhoneNumber        *string       `json:"phoneNumber,omitempty"`
	Type               *DiscountType `json:"type,omitempty"`
	Value              *float64      `json:"value,omitempty"`
	UsageLimit         *int          `json:"usageLimit,omitempty"`
	MinimumOrderAmount *float64      `json:"minimumOrderAmount,omitempty"`
	MaximumDiscount    *float64      `json:"maximumDiscount,omitempty"`
	ValidFrom          *time.Time    `json:"validFrom,omitempty"`
	ValidTo            *time.Time    `json:"validTo,omitempty"`
	Notes              *string       `json:"notes,omitempty"`
}

type ValidateVoucherRequest struct {
	Code        string   `json:"code"`
	OrderAmount *float64 `json:"orderAmount,omitempty"`
}

type VoucherValidation struct {
	IsValid bool     `json:"isValid"`
	Voucher *Voucher `json:"voucher,omitempty"`
	Message string   `json:"message,omitempty"`
}
