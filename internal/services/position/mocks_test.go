package position

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/domain/position"
)

// MockRepository is a mock for position.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, pos *position.Position) error {
	args := m.Called(ctx, pos)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*position.Position), args.Error(1)
}

func (m *MockRepository) Find(ctx context.Context, filter position.Filter) ([]*position.Position, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*position.Position), args.Error(1)
}

func (m *MockRepository) CountOpen(ctx context.Context, coin string, side position.Side) (int64, error) {
	args := m.Called(ctx, coin, side)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Close(ctx context.Context, id uuid.UUID, update position.CloseUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockRepository) MarkClosed(ctx context.Context, filter position.Filter, exitTime int64) (int64, error) {
	args := m.Called(ctx, filter, exitTime)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) AdvanceMaxProfit(ctx context.Context, id uuid.UUID, profit decimal.Decimal, at int64) (bool, error) {
	args := m.Called(ctx, id, profit, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) AdvanceMinProfit(ctx context.Context, id uuid.UUID, profit decimal.Decimal, at int64) (bool, error) {
	args := m.Called(ctx, id, profit, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) SetExtrema(ctx context.Context, id uuid.UUID, maxProfit decimal.Decimal, maxAt int64, minProfit decimal.Decimal, minAt int64) error {
	args := m.Called(ctx, id, maxProfit, maxAt, minProfit, minAt)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) DeleteMany(ctx context.Context, filter position.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) BestPerforming(ctx context.Context) ([]*position.CoinPerformance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*position.CoinPerformance), args.Error(1)
}

// MockStore is a mock for position.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Positions(ctx context.Context, table string) (position.Repository, error) {
	args := m.Called(ctx, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(position.Repository), args.Error(1)
}

func (m *MockStore) Tables(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockPriceSource is a mock for exchanges.PriceSource
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) CurrentPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	args := m.Called(ctx, coin)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPriceSource) Candles(ctx context.Context, coin string, startSec, endSec int64) ([]exchanges.Candle, error) {
	args := m.Called(ctx, coin, startSec, endSec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchanges.Candle), args.Error(1)
}
