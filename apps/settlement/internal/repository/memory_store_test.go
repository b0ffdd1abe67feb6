package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
)

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(q Queries) error {
		require.NoError(t, q.InsertPayout(ctx, testPayout()))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		p, err := q.GetPayoutByID(ctx, "payout-1")
		assert.Nil(t, p)
		return err
	}))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithTx(ctx, func(q Queries) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryStore_DuplicateIdempotencyKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		return q.InsertPayout(ctx, testPayout())
	}))

	err := store.WithTx(ctx, func(q Queries) error {
		dup := testPayout()
		dup.ID = "payout-2"
		return q.InsertPayout(ctx, dup)
	})
	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		other := testPayout()
		other.ID = "payout-3"
		other.OwnerUserID = "owner-2"
		return q.InsertPayout(ctx, other)
	}))
}

func TestMemoryStore_SumPayoutsCreatedBetween(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		rows := []struct {
			id     string
			at     time.Time
			status model.PayoutStatus
			amount int64
		}{
			{"a", day, model.PayoutStatusPending, 100},
			{"b", day.Add(23 * time.Hour), model.PayoutStatusConfirmed, 200},
			{"c", day.Add(24 * time.Hour), model.PayoutStatusPending, 400},
			{"d", day.Add(time.Hour), model.PayoutStatusFailed, 800},
			{"e", day.Add(-time.Nanosecond), model.PayoutStatusApproved, 1600},
		}
		for _, r := range rows {
			p := testPayout()
			p.ID, p.CreatedAt, p.Status, p.AmountCents, p.IdempotencyKey = r.id, r.at, r.status, r.amount, nil
			if err := q.InsertPayout(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		total, err := q.SumPayoutsCreatedBetween(ctx, "owner-1", day, day.Add(24*time.Hour), model.DailyCapStatuses)
		assert.Equal(t, int64(300), total)
		return err
	}))
}

func TestMemoryStore_OutboxClaimCycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		for _, id := range []string{"e-1", "e-2", "e-3"} {
			if err := q.StoreOutboxEvent(ctx, model.OutboxEvent{
				ID: id, Aggregate: model.AggregatePayout, EventType: model.EventPayoutCreated,
				Status: model.OutboxStatusUnsent, EventBlob: []byte(`{}`), CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	var claimed []model.OutboxEvent
	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		var err error
		claimed, err = q.GetUnsentEventsForProcessing(ctx, 2)
		return err
	}))
	require.Len(t, claimed, 2)
	assert.Equal(t, "e-1", claimed[0].ID)

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		if err := q.MarkEventAsSent(ctx, "e-1"); err != nil {
			return err
		}
		return q.MarkEventAsFailed(ctx, "e-2")
	}))

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		var err error
		claimed, err = q.GetUnsentEventsForProcessing(ctx, 10)
		return err
	}))
	ids := []string{}
	for _, e := range claimed {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"e-2", "e-3"}, ids)
}

func TestMemoryStore_DefaultWallets(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	wallet := func(id, address string, isDefault bool) model.Wallet {
		return model.Wallet{
			ID: id, PayeeID: "payee-1", Chain: "polygon", Network: "mainnet", Token: "USDC", Address: address,
			IsDefault: isDefault, VerificationStatus: model.VerificationUnverified, CreatedAt: now, UpdatedAt: now,
		}
	}

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		if _, err := q.UpsertWallet(ctx, wallet("w-1", "0xaaa", true)); err != nil {
			return err
		}
		if err := q.ClearDefaultWallets(ctx, "payee-1", "polygon", "mainnet", "USDC", "0xbbb"); err != nil {
			return err
		}
		saved, err := q.UpsertWallet(ctx, wallet("w-2", "0xbbb", true))
		if err != nil {
			return err
		}
		assert.Equal(t, "w-2", saved.ID)

		// Same natural key keeps the original id.
		again, err := q.UpsertWallet(ctx, wallet("w-3", "0xbbb", true))
		if err != nil {
			return err
		}
		assert.Equal(t, "w-2", again.ID)
		return nil
	}))

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		def, err := q.GetDefaultWallet(ctx, "payee-1", "polygon", "mainnet", "USDC")
		require.NotNil(t, def)
		assert.Equal(t, "w-2", def.ID)
		return err
	}))
}

func TestSeedMarketplace_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, SeedMarketplace(ctx, store, now))
	require.NoError(t, SeedMarketplace(ctx, store, now.Add(time.Hour)))

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		booking, err := q.GetBooking(ctx, DemoBookingID)
		require.NoError(t, err)
		assert.Equal(t, int64(36000), booking.TotalPriceCents)
		assert.Equal(t, now, booking.CreatedAt)

		app, err := q.GetAcceptedApplication(ctx, DemoBountyID)
		require.NoError(t, err)
		assert.Equal(t, DemoApplicant, app.HumanID)

		ok, err := q.HasBountyApplication(ctx, DemoBountyID, DemoApplicant)
		assert.True(t, ok)
		return err
	}))
}

func TestOpenStoreMemorySeedsMarketplace(t *testing.T) {
	ctx := context.Background()
	store, closeStore, err := OpenStore(ctx, "memory", "", true, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()

	require.NoError(t, store.WithTx(ctx, func(q Queries) error {
		booking, err := q.GetBooking(ctx, DemoBookingID)
		require.NoError(t, err)
		require.NotNil(t, booking)
		assert.Equal(t, int64(36000), booking.TotalPriceCents)
		return nil
	}))
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), "sqlite", "", false, zap.NewNop())
	assert.Error(t, err)
}
