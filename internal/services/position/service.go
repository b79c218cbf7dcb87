package position

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/domain/position"
	"tradeserver/internal/metrics"
	"tradeserver/internal/repository/postgres"
	"tradeserver/pkg/errors"
	"tradeserver/pkg/logger"
)

// Service handles the position lifecycle: opening, closing and deleting
// positions across named tables.
type Service struct {
	store  position.Store
	prices exchanges.PriceSource
	log    *logger.Logger

	defaultTable        string
	autoCloseComputePnL bool
}

// NewService creates a new position service
func NewService(store position.Store, prices exchanges.PriceSource, log *logger.Logger, defaultTable string, autoCloseComputePnL bool) *Service {
	if defaultTable == "" {
		defaultTable = "positions"
	}
	return &Service{
		store:               store,
		prices:              prices,
		log:                 log,
		defaultTable:        defaultTable,
		autoCloseComputePnL: autoCloseComputePnL,
	}
}

// ResolveTable maps a client-supplied table name onto a usable one,
// falling back to the default for empty or invalid names.
func (s *Service) ResolveTable(table string) string {
	if table == "" || !postgres.ValidTableName(table) {
		return s.defaultTable
	}
	return table
}

func (s *Service) repo(ctx context.Context, table string) (position.Repository, error) {
	return s.store.Positions(ctx, s.ResolveTable(table))
}

// Tables lists the position tables currently present
func (s *Service) Tables(ctx context.Context) ([]string, error) {
	return s.store.Tables(ctx)
}

// Open opens a new position for the coin at the current market price.
// Any open position on the opposite side of the same coin is closed first.
func (s *Service) Open(ctx context.Context, table, coin string, side position.Side, size decimal.Decimal) (*position.Position, error) {
	if coin == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "coin name required")
	}
	if !side.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "side %q", side)
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "position size %s", size)
	}

	repo, err := s.repo(ctx, table)
	if err != nil {
		return nil, err
	}

	// Friendly pre-check; the open-position unique index is the real guard
	count, err := repo.CountOpen(ctx, coin, side)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.Wrapf(errors.ErrPositionConflict, "%s %s", coin, side)
	}

	// Price is fetched before any mutation so a feed outage leaves nothing
	// half-opened.
	price, err := s.prices.CurrentPrice(ctx, coin)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	if err := s.closeOpposite(ctx, repo, coin, side, price, now); err != nil {
		return nil, err
	}

	pos := &position.Position{
		ID:         uuid.New(),
		CoinName:   coin,
		Side:       side,
		Size:       size,
		EntryPrice: price,
		Status:     position.StatusOpen,
		EntryTime:  now,
	}

	if err := repo.Create(ctx, pos); err != nil {
		return nil, err
	}

	metrics.PositionsOpened.WithLabelValues(s.ResolveTable(table), side.String()).Inc()

	s.log.Infow("Opened position",
		"position_id", pos.ID,
		"coin", coin,
		"side", side,
		"size", size,
		"entry_price", price,
	)

	return pos, nil
}

func (s *Service) closeOpposite(ctx context.Context, repo position.Repository, coin string, side position.Side, price decimal.Decimal, now int64) error {
	opposite := side.Opposite()

	if !s.autoCloseComputePnL {
		flipped, err := repo.MarkClosed(ctx, position.Filter{CoinName: coin, Side: opposite}, now)
		if err != nil {
			return err
		}
		if flipped > 0 {
			s.log.Infow("Auto-closed opposite side", "coin", coin, "side", opposite, "count", flipped)
		}
		return nil
	}

	open, err := repo.Find(ctx, position.Filter{CoinName: coin, Side: opposite, Status: position.StatusOpen})
	if err != nil {
		return err
	}

	closed := s.closeAtPrice(ctx, repo, open, price, now)
	if closed > 0 {
		s.log.Infow("Auto-closed opposite side with PnL", "coin", coin, "side", opposite, "count", closed)
	}
	return nil
}

// closeAtPrice closes each position at the given exit price, computing its
// realized PnL. Per-item failures are logged and skipped.
func (s *Service) closeAtPrice(ctx context.Context, repo position.Repository, open []*position.Position, price decimal.Decimal, now int64) int64 {
	var closed int64

	for _, pos := range open {
		update, err := realize(pos, price, now)
		if err != nil {
			s.log.Warnw("Skipping position with unusable entry price",
				"position_id", pos.ID, "error", err)
			continue
		}

		if err := repo.Close(ctx, pos.ID, update); err != nil {
			s.log.Errorw("Failed to close position", "position_id", pos.ID, "error", err)
			continue
		}

		applyClose(pos, update)
		closed++
	}

	return closed
}

// realize computes the close-time values for a position at the exit price
func realize(pos *position.Position, exitPrice decimal.Decimal, now int64) (position.CloseUpdate, error) {
	qty, err := position.Quantity(pos.Size, pos.EntryPrice)
	if err != nil {
		return position.CloseUpdate{}, err
	}

	gross := position.GrossPnL(pos.Side, pos.EntryPrice, exitPrice, qty)
	fee := position.Fee(pos.Size)

	return position.CloseUpdate{
		ExitPrice: exitPrice,
		ExitTime:  now,
		GrossPnL:  gross,
		Fee:       fee,
		PnL:       gross.Sub(fee),
	}, nil
}

func applyClose(pos *position.Position, u position.CloseUpdate) {
	pos.ExitPrice = decimal.NewNullDecimal(u.ExitPrice)
	pos.ExitTime = u.ExitTime
	pos.GrossPnL = decimal.NewNullDecimal(u.GrossPnL)
	pos.Fee = u.Fee
	pos.PnL = decimal.NewNullDecimal(u.PnL)
	pos.Status = position.StatusClosed
}

// CloseBySide closes every open position for the coin and side at one
// freshly fetched price. Returns the positions that were closed.
func (s *Service) CloseBySide(ctx context.Context, table, coin string, side position.Side) ([]*position.Position, error) {
	if !side.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "side %q", side)
	}

	repo, err := s.repo(ctx, table)
	if err != nil {
		return nil, err
	}

	open, err := repo.Find(ctx, position.Filter{CoinName: coin, Side: side, Status: position.StatusOpen})
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	price, err := s.prices.CurrentPrice(ctx, coin)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	closed := make([]*position.Position, 0, len(open))
	for _, pos := range open {
		update, err := realize(pos, price, now)
		if err != nil {
			s.log.Warnw("Skipping position with unusable entry price",
				"position_id", pos.ID, "error", err)
			continue
		}

		if err := repo.Close(ctx, pos.ID, update); err != nil {
			s.log.Errorw("Failed to close position", "position_id", pos.ID, "error", err)
			continue
		}

		applyClose(pos, update)
		closed = append(closed, pos)
	}

	if len(closed) > 0 {
		metrics.PositionsClosed.WithLabelValues(s.ResolveTable(table), side.String()).Add(float64(len(closed)))
	}

	s.log.Infow("Closed positions by side", "coin", coin, "side", side, "count", len(closed))

	return closed, nil
}

// CloseByID closes a single open position at the current market price
func (s *Service) CloseByID(ctx context.Context, table, id string) (*position.Position, error) {
	posID, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidPositionID, "%q", id)
	}

	repo, err := s.repo(ctx, table)
	if err != nil {
		return nil, err
	}

	pos, err := repo.GetByID(ctx, posID)
	if err != nil {
		return nil, err
	}
	if !pos.IsOpen() {
		return nil, errors.Wrapf(errors.ErrPositionNotFound, "open position %s", posID)
	}

	price, err := s.prices.CurrentPrice(ctx, pos.CoinName)
	if err != nil {
		return nil, err
	}

	update, err := realize(pos, price, time.Now().Unix())
	if err != nil {
		return nil, err
	}

	if err := repo.Close(ctx, posID, update); err != nil {
		return nil, err
	}

	applyClose(pos, update)

	metrics.PositionsClosed.WithLabelValues(s.ResolveTable(table), pos.Side.String()).Inc()

	s.log.Infow("Closed position",
		"position_id", posID,
		"coin", pos.CoinName,
		"exit_price", price,
		"pnl", update.PnL,
	)

	return pos, nil
}

// DeleteByID removes a position permanently
func (s *Service) DeleteByID(ctx context.Context, table, id string) error {
	posID, err := uuid.Parse(id)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidPositionID, "%q", id)
	}

	repo, err := s.repo(ctx, table)
	if err != nil {
		return err
	}

	if err := repo.Delete(ctx, posID); err != nil {
		return err
	}

	s.log.Infow("Deleted position", "position_id", posID)
	return nil
}

// BulkDelete removes all positions matching the filter. An empty filter
// is rejected.
func (s *Service) BulkDelete(ctx context.Context, table string, filter position.Filter) (int64, error) {
	if filter.IsZero() {
		return 0, errors.Wrap(errors.ErrInvalidInput, "bulk delete requires a filter")
	}

	repo, err := s.repo(ctx, table)
	if err != nil {
		return 0, err
	}

	deleted, err := repo.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	s.log.Infow("Bulk deleted positions", "count", deleted, "filter", filter)
	return deleted, nil
}

// GetPositions lists positions matching the filter
func (s *Service) GetPositions(ctx context.Context, table string, filter position.Filter) ([]*position.Position, error) {
	repo, err := s.repo(ctx, table)
	if err != nil {
		return nil, err
	}

	return repo.Find(ctx, filter)
}

// CountOpen counts open positions for the coin, optionally limited to a side
func (s *Service) CountOpen(ctx context.Context, table, coin string, side position.Side) (int64, error) {
	if side != "" && !side.Valid() {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "side %q", side)
	}

	repo, err := s.repo(ctx, table)
	if err != nil {
		return 0, err
	}

	if side != "" {
		return repo.CountOpen(ctx, coin, side)
	}

	long, err := repo.CountOpen(ctx, coin, position.SideLong)
	if err != nil {
		return 0, err
	}
	short, err := repo.CountOpen(ctx, coin, position.SideShort)
	if err != nil {
		return 0, err
	}

	return long + short, nil
}
