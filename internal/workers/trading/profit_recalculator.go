package trading

import (
	"context"
	"time"

	"tradeserver/internal/metrics"
	positionservice "tradeserver/internal/services/position"
	"tradeserver/internal/workers"
)

// ProfitRecalculator periodically rebuilds profit extrema of closed
// positions from historical candles. Disabled by default; the sweep is
// candle-heavy and usually run on demand via the API instead.
type ProfitRecalculator struct {
	*workers.BaseWorker
	recalc *positionservice.Recalculator
	tables []string
}

// NewProfitRecalculator creates a new recalculation worker
func NewProfitRecalculator(recalc *positionservice.Recalculator, tables []string, interval time.Duration, enabled bool) *ProfitRecalculator {
	if len(tables) == 0 {
		tables = []string{"positions"}
	}
	return &ProfitRecalculator{
		BaseWorker: workers.NewBaseWorker("profit_recalculator", interval, enabled),
		recalc:     recalc,
		tables:     tables,
	}
}

// Run executes one recalculation pass across all configured tables
func (w *ProfitRecalculator) Run(ctx context.Context) error {
	start := time.Now()

	var firstErr error
	for _, table := range w.tables {
		select {
		case <-ctx.Done():
			w.Log().Infow("Recalculation interrupted by shutdown", "table", table)
			return ctx.Err()
		default:
		}

		count, err := w.recalc.RecalculateProfits(ctx, table)
		if err != nil {
			w.Log().Errorw("Recalculation failed", "table", table, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		w.Log().Infow("Recalculation pass complete", "table", table, "recalculated", count)
	}

	duration := time.Since(start)
	metrics.RecordWorkerExecution(w.Name(), duration, firstErr)
	if firstErr != nil {
		w.RecordError(firstErr, duration)
		return firstErr
	}

	w.RecordRun(duration)
	return nil
}
