package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// OpenStore builds the store selected by driver. Postgres stores are migrated
// before use; memory stores are optionally seeded with the demo marketplace.
// The returned close function releases the database handle, if any.
func OpenStore(ctx context.Context, driver, dbURL string, seed bool, logger *zap.Logger) (Store, func() error, error) {
	switch driver {
	case "memory":
		store := NewMemoryStore()
		if seed {
			if err := SeedMarketplace(ctx, store, time.Now().UTC()); err != nil {
				return nil, nil, fmt.Errorf("failed to seed memory store: %w", err)
			}
			logger.Info("Seeded demo marketplace",
				zap.String("client_id", DemoClientID),
				zap.String("booking_id", DemoBookingID),
				zap.String("bounty_id", DemoBountyID))
		}
		return store, func() error { return nil }, nil
	case "postgres":
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to reach database: %w", err)
		}
		if err := InitMigration(db, logger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return NewPostgresStore(db, logger), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", driver)
}
