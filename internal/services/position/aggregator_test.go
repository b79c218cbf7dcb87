package position

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeserver/internal/domain/position"
	"tradeserver/pkg/errors"
	"tradeserver/pkg/logger"
)

func TestAggregator_BestPerforming(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	agg := NewAggregator(mockStore, logger.Get())

	ctx := context.Background()

	rows := []*position.CoinPerformance{
		{CoinName: "ETH", TotalPnL: decimal.NewFromInt(25), TradeCount: 4, WinCount: 3, LossCount: 1},
		{CoinName: "BTC", TotalPnL: decimal.NewFromInt(6), TradeCount: 2, WinCount: 1, LossCount: 1},
	}

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("BestPerforming", ctx).Return(rows, nil)

	results, err := agg.BestPerforming(ctx, "positions")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "ETH", results[0].CoinName)
	assert.True(t, results[0].WinRate.Equal(decimal.NewFromInt(75)), "got %s", results[0].WinRate)
	assert.True(t, results[1].WinRate.Equal(decimal.NewFromInt(50)), "got %s", results[1].WinRate)
}

func TestAggregator_BestPerformingEmptyTable(t *testing.T) {
	mockStore := new(MockStore)
	mockRepo := new(MockRepository)
	agg := NewAggregator(mockStore, logger.Get())

	ctx := context.Background()

	mockStore.On("Positions", ctx, "positions").Return(mockRepo, nil)
	mockRepo.On("BestPerforming", ctx).Return([]*position.CoinPerformance{}, nil)

	results, err := agg.BestPerforming(ctx, "positions")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAggregator_BestPerformingInvalidTable(t *testing.T) {
	mockStore := new(MockStore)
	agg := NewAggregator(mockStore, logger.Get())

	ctx := context.Background()

	mockStore.On("Positions", ctx, "bad name").Return(nil, errors.ErrInvalidTableName)

	_, err := agg.BestPerforming(ctx, "bad name")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTableName))
}
