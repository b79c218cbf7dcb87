package exchanges

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource supplies mark prices and historical candles for a coin.
// Implementations receive the bare coin symbol ("BTC") and resolve the
// full exchange pair themselves.
type PriceSource interface {
	// CurrentPrice returns the latest traded price for the coin
	CurrentPrice(ctx context.Context, coin string) (decimal.Decimal, error)

	// Candles returns OHLC candles covering [startSec, endSec] (unix seconds)
	Candles(ctx context.Context, coin string, startSec, endSec int64) ([]Candle, error)
}

// Candle is a single OHLC bar
type Candle struct {
	OpenTime int64 // unix milliseconds
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
}
