package catalog

import (
	"testing"
	"time"
)

func TestNewPageMeta(t *testing.T) {
	cases := []struct {
		page, limit, total int
		want               PageMeta
	}{
		{1, 10, 25, PageMeta{Page: 1, Limit: 10, Total: 25, TotalPages: 3, HasNext: true}},
		{3, 10, 25, PageMeta{Page: 3, Limit: 10, Total: 25, TotalPages: 3, HasPrev: true}},
		{1, 10, 0, PageMeta{Page: 1, Limit: 10}},
		{0, 0, 11, PageMeta{Page: 1, Limit: DefaultLimit, Total: 11, TotalPages: 2, HasNext: true}},
	}
	for _, tc := range cases {
		if got := NewPageMeta(tc.page, tc.limit, tc.total); got != tc.want {
			t.Fatalf("NewPageMeta(%d, %d, %d) = %+v, want %+v", tc.page, tc.limit, tc.total, got, tc.want)
		}
	}
}

func TestListQueryWithDoesNotAlias(t *testing.T) {
	base := ListQuery{}.With("eventId", "ev-1")
	derived := base.WithBool("isUsed", true)

	if _, ok := base.Filter["isUsed"]; ok {
		t.Fatalf("expected base query to be left untouched")
	}
	used, ok := derived.BoolFilter("isUsed")
	if !ok || !used {
		t.Fatalf("expected isUsed=true on derived query")
	}
	if derived.Filter["eventId"] != "ev-1" {
		t.Fatalf("expected derived query to keep eventId")
	}
	if _, ok := derived.BoolFilter("isActive"); ok {
		t.Fatalf("unset filter must report not set")
	}
}

func TestListQueryOffset(t *testing.T) {
	if got := (ListQuery{Page: 3, Limit: 20}).Offset(); got != 40 {
		t.Fatalf("expected offset 40, got %d", got)
	}
	if got := (ListQuery{}).Offset(); got != 0 {
		t.Fatalf("expected offset 0, got %d", got)
	}
}

func TestItemPredicates(t *testing.T) {
	full := Event{MaxQuantity: 5, IssuedCount: 5}
	if full.HasCapacity() || full.Remaining() != 0 {
		t.Fatalf("expected full event to have no capacity")
	}
	if (Voucher{UsageLimit: 0, UsedCount: 9}).HasCapacity() != true {
		t.Fatalf("zero usage limit means unlimited")
	}
	if (Voucher{UsageLimit: 2, UsedCount: 2}).HasCapacity() {
		t.Fatalf("expected exhausted voucher")
	}
	if (Voucher{IsUsed: true}).Active() {
		t.Fatalf("used voucher is not active")
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)
	v := Voucher{ValidFrom: &from, ValidTo: &to}
	if !v.ValidAt(now) || v.ValidAt(to.Add(time.Second)) || v.ValidAt(from.Add(-time.Second)) {
		t.Fatalf("unexpected validity window evaluation")
	}
}
