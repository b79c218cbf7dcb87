package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tradeserver/internal/domain/position"
	"tradeserver/pkg/errors"
)

// Compile-time checks
var (
	_ position.Repository = (*PositionRepository)(nil)
	_ position.Store      = (*Store)(nil)
)

// tableNameRe is the only charset allowed in table names. Names are
// interpolated into DDL/DML, so anything outside it is rejected outright.
var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidTableName reports whether the name can be used as a position table
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// Store hands out PositionRepository instances scoped to named tables,
// creating each table and its open-position unique index on first use.
type Store struct {
	db DBTX

	mu      sync.Mutex
	ensured map[string]bool
}

// NewStore creates a new position store
func NewStore(db DBTX) *Store {
	return &Store{
		db:      db,
		ensured: make(map[string]bool),
	}
}

// Positions returns a repository for the given table
func (s *Store) Positions(ctx context.Context, table string) (position.Repository, error) {
	if !ValidTableName(table) {
		return nil, errors.Wrapf(errors.ErrInvalidTableName, "%q", table)
	}

	if err := s.ensure(ctx, table); err != nil {
		return nil, err
	}

	return NewPositionRepository(s.db, table), nil
}

// Tables lists the position tables currently present
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	var tables []string

	query := `SELECT tablename FROM pg_tables WHERE schemaname = 'public'`

	if err := s.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreFailure, "list tables: %v", err)
	}

	sort.Strings(tables)
	return tables, nil
}

func (s *Store) ensure(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ensured[table] {
		return nil
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			coin_name TEXT NOT NULL,
			side TEXT NOT NULL,
			position_size NUMERIC NOT NULL,
			entry_price NUMERIC NOT NULL,
			exit_price NUMERIC,
			gross_pnl NUMERIC,
			fee NUMERIC NOT NULL DEFAULT 0,
			pnl NUMERIC,
			max_profit NUMERIC NOT NULL DEFAULT 0,
			min_profit NUMERIC NOT NULL DEFAULT 0,
			max_profit_time BIGINT,
			min_profit_time BIGINT,
			status TEXT NOT NULL,
			entry_time BIGINT NOT NULL,
			exit_time BIGINT NOT NULL DEFAULT 0
		)`, table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "create table %s: %v", table, err)
	}

	// One open position per (coin, side); enforced here rather than by
	// pre-insert count checks so concurrent opens cannot race past each other.
	index := fmt.Sprintf(`
		CREATE UNIQUE INDEX IF NOT EXISTS %s_open_coin_side
		ON %s (lower(coin_name), side)
		WHERE status = 'open'`, table, table)

	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "create index on %s: %v", table, err)
	}

	s.ensured[table] = true
	return nil
}

// PositionRepository implements position.Repository over a single table
type PositionRepository struct {
	db    DBTX
	table string
}

// NewPositionRepository creates a repository bound to the given table.
// The table name must already be validated.
func NewPositionRepository(db DBTX, table string) *PositionRepository {
	return &PositionRepository{db: db, table: table}
}

// Create inserts a new position
func (r *PositionRepository) Create(ctx context.Context, p *position.Position) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, coin_name, side,
			position_size, entry_price, exit_price,
			gross_pnl, fee, pnl,
			max_profit, min_profit, max_profit_time, min_profit_time,
			status, entry_time, exit_time
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.CoinName, p.Side,
		p.Size, p.EntryPrice, p.ExitPrice,
		p.GrossPnL, p.Fee, p.PnL,
		p.MaxProfit, p.MinProfit, p.MaxProfitTime, p.MinProfitTime,
		p.Status, p.EntryTime, p.ExitTime,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(errors.ErrPositionConflict, "%s %s", p.CoinName, p.Side)
		}
		return errors.Wrapf(errors.ErrStoreFailure, "create position: %v", err)
	}

	return nil
}

// GetByID retrieves a position by ID
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	var p position.Position

	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, r.table)

	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrPositionNotFound, "%s", id)
		}
		return nil, errors.Wrapf(errors.ErrStoreFailure, "get position: %v", err)
	}

	return &p, nil
}

// Find retrieves positions matching the filter, newest entries first
func (r *PositionRepository) Find(ctx context.Context, filter position.Filter) ([]*position.Position, error) {
	where, args := buildWhere(filter)

	query := fmt.Sprintf(`SELECT * FROM %s %s ORDER BY entry_time DESC`, r.table, where)

	var positions []*position.Position
	if err := r.db.SelectContext(ctx, &positions, query, args...); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreFailure, "find positions: %v", err)
	}

	return positions, nil
}

// CountOpen counts open positions for the coin and side
func (r *PositionRepository) CountOpen(ctx context.Context, coin string, side position.Side) (int64, error) {
	var count int64

	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE lower(coin_name) = lower($1) AND side = $2 AND status = 'open'`, r.table)

	if err := r.db.GetContext(ctx, &count, query, coin, side); err != nil {
		return 0, errors.Wrapf(errors.ErrStoreFailure, "count open positions: %v", err)
	}

	return count, nil
}

// Close fills realized values on an open position
func (r *PositionRepository) Close(ctx context.Context, id uuid.UUID, u position.CloseUpdate) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			exit_price = $2,
			exit_time = $3,
			gross_pnl = $4,
			fee = $5,
			pnl = $6,
			status = 'close'
		WHERE id = $1 AND status = 'open'`, r.table)

	result, err := r.db.ExecContext(ctx, query, id, u.ExitPrice, u.ExitTime, u.GrossPnL, u.Fee, u.PnL)
	if err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "close position: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "close position: %v", err)
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrPositionNotFound, "open position %s", id)
	}

	return nil
}

// MarkClosed flips matching open positions to closed without touching PnL
func (r *PositionRepository) MarkClosed(ctx context.Context, filter position.Filter, exitTime int64) (int64, error) {
	filter.Status = position.StatusOpen
	where, args := buildWhere(filter)
	args = append(args, exitTime)

	query := fmt.Sprintf(`
		UPDATE %s SET status = 'close', exit_time = $%d %s`, r.table, len(args), where)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrStoreFailure, "mark closed: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(errors.ErrStoreFailure, "mark closed: %v", err)
	}

	return rows, nil
}

// AdvanceMaxProfit raises the stored maximum if profit exceeds it.
// The comparison runs inside the UPDATE so concurrent trackers commute.
func (r *PositionRepository) AdvanceMaxProfit(ctx context.Context, id uuid.UUID, profit decimal.Decimal, at int64) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET max_profit = $2, max_profit_time = $3
		WHERE id = $1 AND status = 'open' AND max_profit < $2`, r.table)

	return r.advance(ctx, query, id, profit, at)
}

// AdvanceMinProfit lowers the stored minimum if profit is below it
func (r *PositionRepository) AdvanceMinProfit(ctx context.Context, id uuid.UUID, profit decimal.Decimal, at int64) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET min_profit = $2, min_profit_time = $3
		WHERE id = $1 AND status = 'open' AND min_profit > $2`, r.table)

	return r.advance(ctx, query, id, profit, at)
}

func (r *PositionRepository) advance(ctx context.Context, query string, id uuid.UUID, profit decimal.Decimal, at int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, id, profit, at)
	if err != nil {
		return false, errors.Wrapf(errors.ErrStoreFailure, "advance extremum: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(errors.ErrStoreFailure, "advance extremum: %v", err)
	}

	return rows > 0, nil
}

// SetExtrema overwrites both extrema unconditionally
func (r *PositionRepository) SetExtrema(ctx context.Context, id uuid.UUID, maxProfit decimal.Decimal, maxAt int64, minProfit decimal.Decimal, minAt int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			max_profit = $2, max_profit_time = $3,
			min_profit = $4, min_profit_time = $5
		WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(ctx, query, id, maxProfit, maxAt, minProfit, minAt)
	if err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "set extrema: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "set extrema: %v", err)
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrPositionNotFound, "%s", id)
	}

	return nil
}

// Delete deletes a position
func (r *PositionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "delete position: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(errors.ErrStoreFailure, "delete position: %v", err)
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrPositionNotFound, "%s", id)
	}

	return nil
}

// DeleteMany deletes positions matching the filter. Empty filters are
// rejected so a malformed request cannot truncate a table.
func (r *PositionRepository) DeleteMany(ctx context.Context, filter position.Filter) (int64, error) {
	if filter.IsZero() {
		return 0, errors.Wrap(errors.ErrInvalidInput, "refusing unfiltered bulk delete")
	}

	where, args := buildWhere(filter)

	query := fmt.Sprintf(`DELETE FROM %s %s`, r.table, where)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrStoreFailure, "bulk delete: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(errors.ErrStoreFailure, "bulk delete: %v", err)
	}

	return rows, nil
}

// BestPerforming aggregates closed trades per coin
func (r *PositionRepository) BestPerforming(ctx context.Context) ([]*position.CoinPerformance, error) {
	query := fmt.Sprintf(`
		SELECT
			coin_name,
			SUM(pnl) AS total_pnl,
			COUNT(*) AS trade_count,
			COUNT(*) FILTER (WHERE pnl > 0) AS win_count,
			COUNT(*) FILTER (WHERE pnl < 0) AS loss_count
		FROM %s
		WHERE status = 'close' AND pnl IS NOT NULL
		GROUP BY coin_name
		ORDER BY total_pnl DESC, coin_name ASC`, r.table)

	var results []*position.CoinPerformance
	if err := r.db.SelectContext(ctx, &results, query); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreFailure, "best performing: %v", err)
	}

	return results, nil
}

func buildWhere(filter position.Filter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.CoinName != "" {
		args = append(args, filter.CoinName)
		clauses = append(clauses, fmt.Sprintf("lower(coin_name) = lower($%d)", len(args)))
	}
	if filter.Side != "" {
		args = append(args, filter.Side)
		clauses = append(clauses, fmt.Sprintf("side = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
