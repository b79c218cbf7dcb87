package position

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/domain/position"
	"tradeserver/pkg/errors"
	"tradeserver/pkg/logger"
)

func closedLong(coin string, entryTime, exitTime int64) *position.Position {
	return &position.Position{
		ID:         uuid.New(),
		CoinName:   coin,
		Side:       position.SideLong,
		Size:       decimal.NewFromInt(1000),
		EntryPrice: decimal.NewFromInt(50000),
		Status:     position.StatusClosed,
		EntryTime:  entryTime,
		ExitTime:   exitTime,
	}
}

func candle(openTimeMs int64, high, low, close string) exchanges.Candle {
	return exchanges.Candle{
		OpenTime: openTimeMs,
		High:     decimal.RequireFromString(high),
		Low:      decimal.RequireFromString(low),
		Close:    decimal.RequireFromString(close),
	}
}

func TestRecalculator_RecalculateProfits(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	recalc := NewRecalculator(mockStore, mockPrices, logger.Get())

	ctx := context.Background()
	pos := closedLong("BTC", 1700000000, 1700007200)

	candles := []exchanges.Candle{
		candle(1700000000000, "51000", "49500", "50200"),
		candle(1700000900000, "52000", "50100", "51800"),
	}

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusClosed}).
		Return([]*position.Position{pos}, nil)
	mockPrices.On("Candles", ctx, "BTC", int64(1700000000), int64(1700007200)).
		Return(candles, nil)

	// best price 52000 in second candle: gross 40, fee 0.4 -> 39.6
	// worst price 49500 in first candle: gross -10, fee 0.4 -> -10.4
	mockRepo.On("SetExtrema", ctx, pos.ID,
		mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(decimal.RequireFromString("39.6")) }),
		int64(1700000900),
		mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(decimal.RequireFromString("-10.4")) }),
		int64(1700000000),
	).Return(nil)

	count, err := recalc.RecalculateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	mockRepo.AssertExpectations(t)
}

func TestRecalculator_SkipsPositionsWithoutTimestamps(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	recalc := NewRecalculator(mockStore, mockPrices, logger.Get())

	ctx := context.Background()
	noEntry := closedLong("BTC", 0, 1700007200)
	noExit := closedLong("ETH", 1700000000, 0)

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusClosed}).
		Return([]*position.Position{noEntry, noExit}, nil)

	count, err := recalc.RecalculateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	mockPrices.AssertNotCalled(t, "Candles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecalculator_LeavesPositionsWithoutCandlesUntouched(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	recalc := NewRecalculator(mockStore, mockPrices, logger.Get())

	ctx := context.Background()
	pos := closedLong("BTC", 1700000000, 1700007200)

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusClosed}).
		Return([]*position.Position{pos}, nil)
	mockPrices.On("Candles", ctx, "BTC", int64(1700000000), int64(1700007200)).
		Return([]exchanges.Candle{}, nil)

	count, err := recalc.RecalculateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	mockRepo.AssertNotCalled(t, "SetExtrema",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecalculator_ContinuesPastFeedErrors(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	recalc := NewRecalculator(mockStore, mockPrices, logger.Get())

	ctx := context.Background()
	failing := closedLong("DOGE", 1700000000, 1700003600)
	healthy := closedLong("BTC", 1700000000, 1700003600)

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusClosed}).
		Return([]*position.Position{failing, healthy}, nil)
	mockPrices.On("Candles", ctx, "DOGE", mock.Anything, mock.Anything).
		Return(nil, errors.ErrPriceUnavailable)
	mockPrices.On("Candles", ctx, "BTC", mock.Anything, mock.Anything).
		Return([]exchanges.Candle{candle(1700000000000, "50500", "50000", "50100")}, nil)
	mockRepo.On("SetExtrema", ctx, healthy.ID,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	count, err := recalc.RecalculateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
