package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

var _ ports.BacktestRepository = (*Repository)(nil)

// Repository implements ports.BacktestRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for SQLite repository", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtests.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		symbol TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		initial_capital REAL NOT NULL,
		final_capital REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		total_return_pct REAL NOT NULL,
		sharpe_ratio REAL NOT NULL,
		max_drawdown_pct REAL NOT NULL,
		win_rate REAL NOT NULL,
		profit_factor REAL NULL, -- NULL means unbounded (wins without losses)
		rating TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		run_id TEXT NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		leverage INTEGER NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		entry_fee REAL NOT NULL,
		exit_fee REAL NOT NULL,
		gross_pnl REAL NOT NULL,
		pnl REAL NOT NULL,
		pnl_pct REAL NOT NULL,
		close_reason TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS equity_points (
		run_id TEXT NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		time TIMESTAMP NOT NULL,
		equity REAL NOT NULL,
		drawdown REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs (created_at);
	CREATE INDEX IF NOT EXISTS idx_backtest_runs_symbol ON backtest_runs (symbol, strategy);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("%w: failed to execute schema initialization: %v", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Debug(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveResult stores the run headline, its trades and equity curve in one
// transaction and returns the new run ID.
func (r *Repository) SaveResult(ctx context.Context, result *domain.BacktestResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("%w: nil backtest result", ports.ErrInvalidRequest)
	}
	id := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin transaction: %v", ports.ErrDBConnection, err)
	}
	defer tx.Rollback() // No-op after Commit

	const runQuery = `
	INSERT INTO backtest_runs (id, strategy, symbol, start_time, end_time, initial_capital, final_capital,
	                           total_trades, total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate,
	                           profit_factor, rating, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	m := result.Metrics
	if _, err := tx.ExecContext(ctx, runQuery,
		id, result.StrategyName, result.Symbol, result.StartTime.UTC(), result.EndTime.UTC(),
		result.InitialCapital, result.FinalCapital, result.TotalTrades, m.TotalReturn, m.SharpeRatio,
		m.MaxDrawdownPct, m.WinRate, nullableFloat(m.ProfitFactor), string(m.Rating), r.now().UTC()); err != nil {
		return "", fmt.Errorf("%w: failed to insert run for %s: %v", ports.ErrQueryFailed, result.Symbol, err)
	}

	if err := insertTrades(ctx, tx, id, result.Trades); err != nil {
		return "", err
	}
	if err := insertEquity(ctx, tx, id, result.EquityCurve, result.DrawdownCurve); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit run %s: %v", ports.ErrQueryFailed, id, err)
	}
	r.logger.Debug(ctx, "Backtest run saved", map[string]interface{}{
		"runID":  id,
		"trades": len(result.Trades),
		"points": len(result.EquityCurve),
	})
	return id, nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, runID string, trades []domain.Trade) error {
	const query = `
	INSERT INTO trades (run_id, seq, symbol, direction, entry_time, exit_time, entry_price, exit_price,
	                    quantity, leverage, stop_loss, take_profit, entry_fee, exit_fee, gross_pnl, pnl,
	                    pnl_pct, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: prepare trade insert: %v", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			runID, t.ID, t.Symbol, string(t.Direction), t.EntryTime.UTC(), t.ExitTime.UTC(), t.EntryPrice, t.ExitPrice,
			t.Quantity, t.Leverage, t.StopLoss, t.TakeProfit, t.EntryFee, t.ExitFee, t.GrossPnL, t.PnL,
			t.PnLPct, string(t.CloseReason)); err != nil {
			return fmt.Errorf("%w: failed to insert trade %d: %v", ports.ErrQueryFailed, t.ID, err)
		}
	}
	return nil
}

func insertEquity(ctx context.Context, tx *sql.Tx, runID string, equity []domain.EquityPoint, drawdown []domain.DrawdownPoint) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO equity_points (run_id, seq, time, equity, drawdown) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare equity insert: %v", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	for i, p := range equity {
		dd := 0.0
		if i < len(drawdown) {
			dd = drawdown[i].Drawdown
		}
		if _, err := stmt.ExecContext(ctx, runID, i, p.Time.UTC(), p.Equity, dd); err != nil {
			return fmt.Errorf("%w: failed to insert equity point %d: %v", ports.ErrQueryFailed, i, err)
		}
	}
	return nil
}

const runColumns = `
	SELECT id, strategy, symbol, start_time, end_time, initial_capital, final_capital, total_trades,
	       total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate, profit_factor, rating, created_at
	FROM backtest_runs`

// FindRun retrieves a run summary by ID.
func (r *Repository) FindRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	row := r.db.QueryRowContext(ctx, runColumns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to query run %s: %v", ports.ErrQueryFailed, id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, runColumns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list runs: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]*domain.RunSummary, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan run during ListRuns: %v", ports.ErrQueryFailed, err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating run rows: %v", ports.ErrQueryFailed, err)
	}
	return runs, nil
}

// FindTrades returns the trades of a run ordered by trade sequence.
func (r *Repository) FindTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	const query = `
	SELECT seq, symbol, direction, entry_time, exit_time, entry_price, exit_price, quantity, leverage,
	       stop_loss, take_profit, entry_fee, exit_fee, gross_pnl, pnl, pnl_pct, close_reason
	FROM trades
	WHERE run_id = ? ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trades for run %s: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		var t domain.Trade
		var direction, reason string
		if err := rows.Scan(
			&t.ID, &t.Symbol, &direction, &t.EntryTime, &t.ExitTime, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.Leverage,
			&t.StopLoss, &t.TakeProfit, &t.EntryFee, &t.ExitFee, &t.GrossPnL, &t.PnL, &t.PnLPct, &reason); err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade during FindTrades: %v", ports.ErrQueryFailed, err)
		}
		t.Direction = domain.Direction(direction)
		t.CloseReason = domain.CloseReason(reason)
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating trade rows: %v", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// FindEquityCurve returns the equity and drawdown samples of a run in bar order.
func (r *Repository) FindEquityCurve(ctx context.Context, runID string) ([]domain.EquityPoint, []domain.DrawdownPoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT time, equity, drawdown FROM equity_points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to query equity for run %s: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	var equity []domain.EquityPoint
	var drawdown []domain.DrawdownPoint
	for rows.Next() {
		var ts time.Time
		var eq, dd float64
		if err := rows.Scan(&ts, &eq, &dd); err != nil {
			return nil, nil, fmt.Errorf("%w: failed to scan equity point: %v", ports.ErrQueryFailed, err)
		}
		equity = append(equity, domain.EquityPoint{Time: ts, Equity: eq})
		drawdown = append(drawdown, domain.DrawdownPoint{Time: ts, Drawdown: dd})
	}
	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: error iterating equity rows: %v", ports.ErrQueryFailed, err)
	}
	return equity, drawdown, nil
}

// DeleteRun removes a run with its trades and equity curve.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete run %s: %v", ports.ErrQueryFailed, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected for run %s: %v", ports.ErrQueryFailed, id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("run %s not found for delete: %w", id, ports.ErrNotFound)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*domain.RunSummary, error) {
	run := &domain.RunSummary{}
	var pf sql.NullFloat64
	var rating string
	err := s.Scan(
		&run.ID, &run.StrategyName, &run.Symbol, &run.StartTime, &run.EndTime, &run.InitialCapital,
		&run.FinalCapital, &run.TotalTrades, &run.TotalReturnPct, &run.SharpeRatio, &run.MaxDrawdownPct,
		&run.WinRate, &pf, &rating, &run.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	run.ProfitFactor = math.Inf(1)
	if pf.Valid {
		run.ProfitFactor = pf.Float64
	}
	run.Rating = domain.Rating(rating)
	return run, nil
}

// nullableFloat maps values SQLite cannot store (±Inf, NaN) to NULL.
func nullableFloat(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
