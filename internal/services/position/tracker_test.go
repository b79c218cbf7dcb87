package position

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradeserver/internal/domain/position"
	"tradeserver/pkg/errors"
	"tradeserver/pkg/logger"
)

func openLong(coin string, size, entry int64) *position.Position {
	return &position.Position{
		ID:         uuid.New(),
		CoinName:   coin,
		Side:       position.SideLong,
		Size:       decimal.NewFromInt(size),
		EntryPrice: decimal.NewFromInt(entry),
		Status:     position.StatusOpen,
		EntryTime:  1700000000,
	}
}

func TestTracker_UpdateProfits(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	tracker := NewTracker(mockStore, mockPrices, logger.Get())

	ctx := context.Background()
	pos := openLong("BTC", 1000, 50000)

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusOpen}).
		Return([]*position.Position{pos}, nil)
	mockPrices.On("CurrentPrice", ctx, "BTC").Return(decimal.NewFromInt(51000), nil)

	// net profit at 51000: gross 20 minus fee 0.4
	expected := decimal.RequireFromString("19.6")
	mockRepo.On("AdvanceMaxProfit", ctx, pos.ID, mock.MatchedBy(func(p decimal.Decimal) bool {
		return p.Equal(expected)
	}), mock.AnythingOfType("int64")).Return(true, nil)
	mockRepo.On("AdvanceMinProfit", ctx, pos.ID, mock.MatchedBy(func(p decimal.Decimal) bool {
		return p.Equal(expected)
	}), mock.AnythingOfType("int64")).Return(false, nil)

	updated, err := tracker.UpdateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	mockRepo.AssertExpectations(t)
}

func TestTracker_UpdateProfitsSkipsFailedPriceFetch(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	tracker := NewTracker(mockStore, mockPrices, logger.Get())

	ctx := context.Background()
	failing := openLong("DOGE", 100, 1)
	healthy := openLong("BTC", 1000, 50000)

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusOpen}).
		Return([]*position.Position{failing, healthy}, nil)
	mockPrices.On("CurrentPrice", ctx, "DOGE").Return(decimal.Zero, errors.ErrPriceUnavailable)
	mockPrices.On("CurrentPrice", ctx, "BTC").Return(decimal.NewFromInt(50000), nil)
	mockRepo.On("AdvanceMaxProfit", ctx, healthy.ID, mock.Anything, mock.Anything).Return(false, nil)
	mockRepo.On("AdvanceMinProfit", ctx, healthy.ID, mock.Anything, mock.Anything).Return(true, nil)

	updated, err := tracker.UpdateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	// The failing coin never reached the repository
	mockRepo.AssertNotCalled(t, "AdvanceMaxProfit", ctx, failing.ID, mock.Anything, mock.Anything)
}

func TestTracker_UpdateProfitsSkipsZeroEntryPrice(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	tracker := NewTracker(mockStore, mockPrices, logger.Get())

	ctx := context.Background()
	corrupt := &position.Position{
		ID:       uuid.New(),
		CoinName: "BTC",
		Side:     position.SideLong,
		Size:     decimal.NewFromInt(1000),
		Status:   position.StatusOpen,
	}

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusOpen}).
		Return([]*position.Position{corrupt}, nil)
	mockPrices.On("CurrentPrice", ctx, "BTC").Return(decimal.NewFromInt(50000), nil)

	updated, err := tracker.UpdateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
	mockRepo.AssertNotCalled(t, "AdvanceMaxProfit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTracker_UpdateProfitsNoOpenPositions(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	mockPrices := new(MockPriceSource)
	tracker := NewTracker(mockStore, mockPrices, logger.Get())

	ctx := context.Background()

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("Find", ctx, position.Filter{Status: position.StatusOpen}).
		Return([]*position.Position{}, nil)

	updated, err := tracker.UpdateProfits(ctx, "positions")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
	mockPrices.AssertNotCalled(t, "CurrentPrice", mock.Anything, mock.Anything)
}
