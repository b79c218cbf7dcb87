package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/adapters/redis"
	"tradeserver/pkg/logger"
)

// Compile-time check
var _ exchanges.PriceSource = (*PriceService)(nil)

// PriceService is a read-through cache over an exchange price source.
// Ticker prices are cached for a short TTL to absorb bursts from the
// profit tracker; candles always go to the exchange.
type PriceService struct {
	source exchanges.PriceSource
	cache  *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewPriceService creates a price service. A nil cache disables caching
// and every lookup hits the exchange.
func NewPriceService(source exchanges.PriceSource, cache *redis.Client, ttl time.Duration, log *logger.Logger) *PriceService {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &PriceService{
		source: source,
		cache:  cache,
		ttl:    ttl,
		log:    log,
	}
}

// CurrentPrice returns the latest price for the coin, served from cache
// when fresh enough.
func (s *PriceService) CurrentPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	if s.cache == nil {
		return s.source.CurrentPrice(ctx, coin)
	}

	key := "price:" + coin

	var cached string
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if price, perr := decimal.NewFromString(cached); perr == nil {
			return price, nil
		}
	} else if !redis.IsMiss(err) {
		s.log.Warnw("Price cache read failed", "coin", coin, "error", err)
	}

	price, err := s.source.CurrentPrice(ctx, coin)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.cache.Set(ctx, key, price.String(), s.ttl); err != nil {
		s.log.Warnw("Price cache write failed", "coin", coin, "error", err)
	}

	return price, nil
}

// Candles passes through to the exchange
func (s *PriceService) Candles(ctx context.Context, coin string, startSec, endSec int64) ([]exchanges.Candle, error) {
	return s.source.Candles(ctx, coin, startSec, endSec)
}
