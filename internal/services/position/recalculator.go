package position

import (
	"context"

	"github.com/shopspring/decimal"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/domain/position"
	"tradeserver/pkg/logger"
)

// Recalculator rebuilds profit extrema for closed positions from historical
// candles. Useful when the live tracker was down or its interval too coarse.
type Recalculator struct {
	store  position.Store
	prices exchanges.PriceSource
	log    *logger.Logger
}

// NewRecalculator creates a new historical recalculator
func NewRecalculator(store position.Store, prices exchanges.PriceSource, log *logger.Logger) *Recalculator {
	return &Recalculator{
		store:  store,
		prices: prices,
		log:    log,
	}
}

// RecalculateProfits replays candles over each closed position's lifetime
// and overwrites its extrema with the candle-derived values. Positions
// with no candles in range are left untouched. Idempotent. Returns the
// number of positions recalculated.
func (r *Recalculator) RecalculateProfits(ctx context.Context, table string) (int64, error) {
	repo, err := r.store.Positions(ctx, table)
	if err != nil {
		return 0, err
	}

	closed, err := repo.Find(ctx, position.Filter{Status: position.StatusClosed})
	if err != nil {
		return 0, err
	}

	var recalculated int64

	for _, pos := range closed {
		if pos.EntryTime <= 0 || pos.ExitTime <= 0 {
			continue
		}

		candles, err := r.prices.Candles(ctx, pos.CoinName, pos.EntryTime, pos.ExitTime)
		if err != nil {
			r.log.Warnw("Candles unavailable, skipping position",
				"position_id", pos.ID, "coin", pos.CoinName, "error", err)
			continue
		}
		if len(candles) == 0 {
			continue
		}

		maxProfit, maxAt, minProfit, minAt, err := extremaFromCandles(pos, candles)
		if err != nil {
			r.log.Warnw("Skipping position with unusable entry price",
				"position_id", pos.ID, "error", err)
			continue
		}

		if err := repo.SetExtrema(ctx, pos.ID, maxProfit, maxAt, minProfit, minAt); err != nil {
			r.log.Errorw("Failed to store extrema", "position_id", pos.ID, "error", err)
			continue
		}

		recalculated++
	}

	r.log.Infow("Recalculation complete",
		"table", table, "closed", len(closed), "recalculated", recalculated)

	return recalculated, nil
}

// extremaFromCandles evaluates net PnL at every candle's high, low and
// close and returns the best and worst observations with their timestamps.
func extremaFromCandles(pos *position.Position, candles []exchanges.Candle) (decimal.Decimal, int64, decimal.Decimal, int64, error) {
	var (
		maxProfit, minProfit decimal.Decimal
		maxAt, minAt         int64
		first                = true
	)

	for _, candle := range candles {
		at := candle.OpenTime / 1000

		for _, price := range []decimal.Decimal{candle.High, candle.Low, candle.Close} {
			profit, err := pos.UnrealizedPnL(price)
			if err != nil {
				return decimal.Zero, 0, decimal.Zero, 0, err
			}

			if first || profit.GreaterThan(maxProfit) {
				maxProfit = profit
				maxAt = at
			}
			if first || profit.LessThan(minProfit) {
				minProfit = profit
				minAt = at
			}
			first = false
		}
	}

	return maxProfit, maxAt, minProfit, minAt, nil
}
