package repository

import (
	"context"
	"time"

	"settlement/apps/settlement/internal/model"
)

// Demo marketplace records for STORE_DRIVER=memory. Ids are stable so they can
// be referenced from curl examples and MCP sessions.
const (
	DemoClientID   = "user-demo-client"
	DemoHumanID    = "human-demo-alice"
	DemoApplicant  = "human-demo-bob"
	DemoBookingID  = "booking-demo-1"
	DemoBountyID   = "bounty-demo-1"
	DemoCancelledB = "booking-demo-cancelled"
)

// SeedMarketplace inserts a booking, a cancelled booking and a bounty with one
// accepted application. Existing rows are left untouched.
func SeedMarketplace(ctx context.Context, store Store, now time.Time) error {
	return store.WithTx(ctx, func(q Queries) error {
		bookings := []model.Booking{
			{ID: DemoBookingID, UserID: DemoClientID, HumanID: DemoHumanID, TotalPriceCents: 36000, Status: "confirmed", CreatedAt: now},
			{ID: DemoCancelledB, UserID: DemoClientID, HumanID: DemoHumanID, TotalPriceCents: 12000, Status: model.SourceStatusCancelled, CreatedAt: now},
		}
		for _, b := range bookings {
			if err := q.InsertBooking(ctx, b); err != nil {
				return err
			}
		}

		if err := q.InsertBounty(ctx, model.Bounty{
			ID: DemoBountyID, UserID: DemoClientID, BudgetCents: 50000, Status: "open", CreatedAt: now,
		}); err != nil {
			return err
		}
		return q.InsertBountyApplication(ctx, model.BountyApplication{
			ID: "application-demo-1", BountyID: DemoBountyID, HumanID: DemoApplicant,
			ProposedPriceCents: 42000, Status: model.ApplicationStatusAccepted, CreatedAt: now,
		})
	})
}
