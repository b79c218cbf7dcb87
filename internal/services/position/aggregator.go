package position

import (
	"context"

	"github.com/shopspring/decimal"

	"tradeserver/internal/domain/position"
	"tradeserver/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// Aggregator reports per-coin realized performance
type Aggregator struct {
	store position.Store
	log   *logger.Logger
}

// NewAggregator creates a new performance aggregator
func NewAggregator(store position.Store, log *logger.Logger) *Aggregator {
	return &Aggregator{
		store: store,
		log:   log,
	}
}

// BestPerforming returns realized results grouped by coin, best total PnL
// first with ties broken by coin name. Coins with no closed trades do not
// appear.
func (a *Aggregator) BestPerforming(ctx context.Context, table string) ([]*position.CoinPerformance, error) {
	repo, err := a.store.Positions(ctx, table)
	if err != nil {
		return nil, err
	}

	results, err := repo.BestPerforming(ctx)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.TradeCount > 0 {
			res.WinRate = decimal.NewFromInt(res.WinCount).
				Div(decimal.NewFromInt(res.TradeCount)).
				Mul(hundred)
		} else {
			res.WinRate = decimal.Zero
		}
	}

	return results, nil
}
