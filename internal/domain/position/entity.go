package position

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position is a single directional trade tracked from entry to exit.
// Realized PnL fields stay null while the position is open; extrema are
// maintained continuously by the profit tracker.
type Position struct {
	ID uuid.UUID `db:"id" json:"id"`

	CoinName string `db:"coin_name" json:"coinName"`
	Side     Side   `db:"side" json:"positionSide"`

	// Size & prices
	Size       decimal.Decimal     `db:"position_size" json:"positionSize"`
	EntryPrice decimal.Decimal     `db:"entry_price" json:"entryPrice"`
	ExitPrice  decimal.NullDecimal `db:"exit_price" json:"exitPrice"`

	// Realized PnL, filled on close
	GrossPnL decimal.NullDecimal `db:"gross_pnl" json:"grossPnl"`
	Fee      decimal.Decimal     `db:"fee" json:"fee"`
	PnL      decimal.NullDecimal `db:"pnl" json:"pnl"`

	// Profit extrema over the position's lifetime (net of fees)
	MaxProfit     decimal.Decimal `db:"max_profit" json:"maxProfit"`
	MinProfit     decimal.Decimal `db:"min_profit" json:"minProfit"`
	MaxProfitTime *int64          `db:"max_profit_time" json:"maxProfitTime"`
	MinProfitTime *int64          `db:"min_profit_time" json:"minProfitTime"`

	Status Status `db:"status" json:"status"`

	// Unix seconds. ExitTime is 0 while the position is open.
	EntryTime int64 `db:"entry_time" json:"entryTime"`
	ExitTime  int64 `db:"exit_time" json:"exitTime"`
}

// IsOpen returns true if the position has not been closed
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Side defines the direction of a position
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// Valid checks if the side is valid
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// String returns string representation
func (s Side) String() string {
	return string(s)
}

// Status defines position lifecycle status
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "close"
)

// Valid checks if the status is valid
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// CoinPerformance aggregates realized results for one coin
type CoinPerformance struct {
	CoinName   string          `db:"coin_name" json:"coinName"`
	TotalPnL   decimal.Decimal `db:"total_pnl" json:"totalPnl"`
	TradeCount int64           `db:"trade_count" json:"tradeCount"`
	WinCount   int64           `db:"win_count" json:"winCount"`
	LossCount  int64           `db:"loss_count" json:"lossCount"`
	WinRate    decimal.Decimal `json:"winRate"`
}
