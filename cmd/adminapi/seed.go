package main

import (
	"context"
	"fmt"
	"log"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/inventory"
)

func seedDemoData(ctx context.Context, store inventory.Store) error {
	_, total, err := store.ListEvents(ctx, catalog.ListQuery{Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		log.Printf("adminapi demo seed skipped: events=%d", total)
		return nil
	}

	events := []catalog.CreateEventRequest{
		{Name: "Spring Jazz Night", Description: "Live quartet on the rooftop", MaxQuantity: 120},
		{Name: "Book Fair", Description: "Local publishers and signings", MaxQuantity: 300},
		{Name: "Winter Gala", Description: "Closed until next season", MaxQuantity: 80},
	}
	for i, req := range events {
		event, err := store.CreateEvent(ctx, req)
		if err != nil {
			return fmt.Errorf("seed event %q: %w", req.Name, err)
		}
		for n := 0; n < 2; n++ {
			_, err := store.IssueVoucher(ctx, catalog.CreateVoucherRequest{
				EventID: event.ID,
				IssueTo: fmt.Sprintf("guest%d.%d@example.com", i+1, n+1),
				Type:    catalog.DiscountPercentage,
				Value:   10,
			})
			if err != nil {
				return fmt.Errorf("seed voucher for %q: %w", req.Name, err)
			}
		}
		if i == len(events)-1 {
			if _, err := store.ToggleEvent(ctx, event.ID); err != nil {
				return fmt.Errorf("seed toggle %q: %w", req.Name, err)
			}
		}
	}
	log.Printf("adminapi demo seed done: events=%d", len(events))
	return nil
}
