package position

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Filter narrows queries over a position table. Zero-value fields are ignored.
// Coin matching is case-insensitive.
type Filter struct {
	CoinName string
	Side     Side
	Status   Status
}

// IsZero reports whether the filter matches everything
func (f Filter) IsZero() bool {
	return f.CoinName == "" && f.Side == "" && f.Status == ""
}

// CloseUpdate carries the realized values written when a position closes
type CloseUpdate struct {
	ExitPrice decimal.Decimal
	ExitTime  int64
	GrossPnL  decimal.Decimal
	Fee       decimal.Decimal
	PnL       decimal.Decimal
}

// Repository defines data access for a single position table
type Repository interface {
	Create(ctx context.Context, position *Position) error
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)
	Find(ctx context.Context, filter Filter) ([]*Position, error)
	CountOpen(ctx context.Context, coin string, side Side) (int64, error)

	// Close fills realized values on an open position. Closing an already
	// closed or missing position returns ErrPositionNotFound.
	Close(ctx context.Context, id uuid.UUID, update CloseUpdate) error

	// MarkClosed flips matching open positions to the closed status without
	// touching their PnL fields. Returns the number of positions flipped.
	MarkClosed(ctx context.Context, filter Filter, exitTime int64) (int64, error)

	// AdvanceMaxProfit raises the stored maximum if profit exceeds it.
	// Returns true when the row was updated.
	AdvanceMaxProfit(ctx context.Context, id uuid.UUID, profit decimal.Decimal, at int64) (bool, error)

	// AdvanceMinProfit lowers the stored minimum if profit is below it.
	AdvanceMinProfit(ctx context.Context, id uuid.UUID, profit decimal.Decimal, at int64) (bool, error)

	// SetExtrema overwrites both extrema unconditionally
	SetExtrema(ctx context.Context, id uuid.UUID, maxProfit decimal.Decimal, maxAt int64, minProfit decimal.Decimal, minAt int64) error

	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, filter Filter) (int64, error)

	// BestPerforming aggregates closed trades per coin, ordered by total
	// PnL descending with ties broken by coin name.
	BestPerforming(ctx context.Context) ([]*CoinPerformance, error)
}

// Store hands out repositories scoped to named position tables
type Store interface {
	// Positions returns a repository for the given table, creating the
	// table on first use. Invalid names return ErrInvalidTableName.
	Positions(ctx context.Context, table string) (Repository, error)

	// Tables lists the position tables currently present
	Tables(ctx context.Context) ([]string, error)
}
