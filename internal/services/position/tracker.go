package position

import (
	"context"
	"time"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/domain/position"
	"tradeserver/pkg/logger"
)

// Tracker sweeps open positions and advances their profit extrema against
// the current market price. Safe to run from multiple processes: extrema
// only move outward, enforced by the repository's conditional updates.
type Tracker struct {
	store  position.Store
	prices exchanges.PriceSource
	log    *logger.Logger
}

// NewTracker creates a new profit tracker
func NewTracker(store position.Store, prices exchanges.PriceSource, log *logger.Logger) *Tracker {
	return &Tracker{
		store:  store,
		prices: prices,
		log:    log,
	}
}

// UpdateProfits scans all open positions in the table and records new
// profit extrema. A failed price fetch or unusable entry price skips that
// position; the sweep continues. Returns the number of positions whose
// extrema advanced.
func (t *Tracker) UpdateProfits(ctx context.Context, table string) (int64, error) {
	repo, err := t.store.Positions(ctx, table)
	if err != nil {
		return 0, err
	}

	open, err := repo.Find(ctx, position.Filter{Status: position.StatusOpen})
	if err != nil {
		return 0, err
	}

	var updated int64

	for _, pos := range open {
		price, err := t.prices.CurrentPrice(ctx, pos.CoinName)
		if err != nil {
			t.log.Warnw("Price unavailable, skipping position",
				"position_id", pos.ID, "coin", pos.CoinName, "error", err)
			continue
		}

		profit, err := pos.UnrealizedPnL(price)
		if err != nil {
			t.log.Warnw("Skipping position with unusable entry price",
				"position_id", pos.ID, "error", err)
			continue
		}

		now := time.Now().Unix()

		maxAdvanced, err := repo.AdvanceMaxProfit(ctx, pos.ID, profit, now)
		if err != nil {
			t.log.Errorw("Failed to advance max profit", "position_id", pos.ID, "error", err)
			continue
		}

		minAdvanced, err := repo.AdvanceMinProfit(ctx, pos.ID, profit, now)
		if err != nil {
			t.log.Errorw("Failed to advance min profit", "position_id", pos.ID, "error", err)
			continue
		}

		if maxAdvanced || minAdvanced {
			updated++
			t.log.Debugw("Advanced profit extrema",
				"position_id", pos.ID, "coin", pos.CoinName, "profit", profit)
		}
	}

	t.log.Infow("Profit sweep complete", "table", table, "open", len(open), "updated", updated)

	return updated, nil
}
