package catalog

import "time"

type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MaxQuantity int       `json:"maxQuantity"`
	IssuedCount int       `json:"issuedCount"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LockInfo
}

func (e Event) ItemID() string { return e.ID }

func (e Event) Active() bool { return e.IsActive }

// HasCapacity reports whether more vouchers can be issued for the event.
func (e Event) HasCapacity() bool { return e.IssuedCount < e.MaxQuantity }

// Remaining returns the number of vouchers that can still be issued.
func (e Event) Remaining() int {
	if e.IssuedCount >= e.MaxQuantity {
		return 0
	}
	return e.MaxQuantity - e.IssuedCount
}

type CreateEventRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxQuantity int    `json:"maxQuantity"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

type UpdateEventRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	MaxQuantity *int    `json:"maxQuantity,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type EventStats struct {
	TotalEvents    int `json:"totalEvents"`
	ActiveEvents   int `json:"activeEvents"`
	InactiveEvents int `json:"inactiveEvents"`
	TotalIssued    int `json:"totalIssued"`
	TotalAvailable int `json:"totalAvailable"`
}
