package trading

import (
	"context"
	"time"

	"tradeserver/internal/metrics"
	positionservice "tradeserver/internal/services/position"
	"tradeserver/internal/workers"
)

// ProfitTracker periodically sweeps open positions in the configured
// tables and advances their profit extrema against live prices.
type ProfitTracker struct {
	*workers.BaseWorker
	tracker *positionservice.Tracker
	tables  []string
}

// NewProfitTracker creates a new profit tracker worker
func NewProfitTracker(tracker *positionservice.Tracker, tables []string, interval time.Duration, enabled bool) *ProfitTracker {
	if len(tables) == 0 {
		tables = []string{"positions"}
	}
	return &ProfitTracker{
		BaseWorker: workers.NewBaseWorker("profit_tracker", interval, enabled),
		tracker:    tracker,
		tables:     tables,
	}
}

// Run executes one sweep across all configured tables
func (w *ProfitTracker) Run(ctx context.Context) error {
	start := time.Now()

	var firstErr error
	for _, table := range w.tables {
		select {
		case <-ctx.Done():
			w.Log().Infow("Profit sweep interrupted by shutdown", "table", table)
			return ctx.Err()
		default:
		}

		updated, err := w.tracker.UpdateProfits(ctx, table)
		if err != nil {
			w.Log().Errorw("Profit sweep failed", "table", table, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if updated > 0 {
			metrics.ProfitSweepUpdates.WithLabelValues(table).Add(float64(updated))
		}
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
