package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the position, trade, order journal and backtest run
// repositories using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
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
		dbPath = "./data/nifty_greeks.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serialises writers; SQLite locks the whole file anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		quantity INTEGER NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		status TEXT NOT NULL,
		close_reason TEXT DEFAULT NULL,
		pnl REAL DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		close_reason TEXT NOT NULL,
		pnl REAL NOT NULL,
		costs REAL NOT NULL,
		net_pnl REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS order_intents (
		client_order_id TEXT PRIMARY KEY,
		position_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS backtest_runs (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		data_from TIMESTAMP NOT NULL,
		data_to TIMESTAMP NOT NULL,
		snapshots INTEGER NOT NULL,
		total_trades INTEGER NOT NULL,
		net_pnl REAL NOT NULL,
		return_pct REAL NOT NULL,
		profit_factor REAL DEFAULT NULL, -- NULL when there were wins and no losses
		policy_json TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS backtest_trades (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		position_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		close_reason TEXT NOT NULL,
		pnl REAL NOT NULL,
		costs REAL NOT NULL,
		net_pnl REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_exit_time ON trade_history (symbol, exit_time);
	CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs (created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("%w: failed to execute schema initialization: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

// Create saves a new position under the ID assigned by the state machine.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (id, symbol, side, entry_price, quantity, entry_time, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		pos.ID, pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity, pos.EntryTime.UTC(), pos.Status)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: position ID %d: %w", ports.ErrDuplicateEntry, pos.ID, err)
		}
		return fmt.Errorf("%w: failed to insert position %d for symbol %s: %w", ports.ErrQueryFailed, pos.ID, pos.Symbol, err)
	}
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
	return nil
}

// Update modifies an existing position based on its ID.
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET exit_price = ?, exit_time = ?, status = ?, close_reason = ?, pnl = ?
	WHERE id = ?`

	var exitTime sql.NullTime
	if !pos.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: pos.ExitTime.UTC(), Valid: true}
	}
	var reason sql.NullString
	if pos.CloseReason != "" {
		reason = sql.NullString{String: string(pos.CloseReason), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		pos.ExitPrice, exitTime, pos.Status, reason, pos.PNL, pos.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to update position ID %d: %w", ports.ErrUpdateFailed, pos.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected for update position ID %d: %w", ports.ErrUpdateFailed, pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol, "status": pos.Status})
	return nil
}

const positionColumns = `id, symbol, side, entry_price, COALESCE(exit_price, 0), quantity,
	       entry_time, exit_time, status, COALESCE(close_reason, ''), COALESCE(pnl, 0)`

// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + `
	FROM positions
	WHERE symbol = ? AND status = ?
	ORDER BY id DESC LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, symbol, domain.StatusOpen)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("%w: failed to query open position for symbol %s: %w", ports.ErrQueryFailed, symbol, err)
	}
	return pos, nil
}

// FindByID retrieves a position by its unique ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + `
	FROM positions
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("%w: failed to query position by ID %d: %w", ports.ErrQueryFailed, id, err)
	}
	return pos, nil
}

// LastID returns the highest stored position ID, or 0 when there are none.
func (r *Repository) LastID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM positions`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read last position ID: %w", ports.ErrQueryFailed, err)
	}
	return id, nil
}

// GetTotalProfit calculates the sum of PNL for all closed positions.
func (r *Repository) GetTotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(pnl), 0) FROM positions WHERE status = ?`
	var totalProfit float64
	if err := r.db.QueryRowContext(ctx, query, domain.StatusClosed).Scan(&totalProfit); err != nil {
		return 0, fmt.Errorf("%w: failed to calculate total profit: %w", ports.ErrQueryFailed, err)
	}
	return totalProfit, nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.TradeRecord) (int64, error) {
	const query = `
	INSERT INTO trade_history (position_id, symbol, side, quantity, entry_price, exit_price,
	                           entry_time, exit_time, close_reason, pnl, costs, net_pnl)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.PositionID, trade.Symbol, trade.Side, trade.Quantity, trade.EntryPrice, trade.ExitPrice,
		trade.EntryTime.UTC(), trade.ExitTime.UTC(), trade.CloseReason, trade.PNL, trade.Costs, trade.NetPNL)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert trade history for symbol %s: %w", ports.ErrQueryFailed, trade.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get last insert ID for trade history %s: %w", ports.ErrQueryFailed, trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade history created", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "pnl": trade.PNL})
	return id, nil
}

// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT id, position_id, symbol, side, quantity, entry_price, exit_price,
	       entry_time, exit_time, close_reason, pnl, costs, net_pnl
	FROM trade_history
	WHERE symbol = ? ORDER BY exit_time DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trade history for symbol %s: %w", ports.ErrQueryFailed, symbol, err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		var t domain.TradeRecord
		if err := scanTrade(rows, &t.ID, &t); err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade history during FindBySymbol: %w", ports.ErrQueryFailed, err)
		}
		trades = append(trades, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating trade history rows: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// --- OrderJournal Implementation ---

// SaveOrderIntent journals an order intent. Client order IDs are unique.
func (r *Repository) SaveOrderIntent(ctx context.Context, intent domain.OrderIntent) error {
	const query = `
	INSERT INTO order_intents (client_order_id, position_id, symbol, action, side, quantity, price, reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		intent.ClientOrderID, intent.PositionID, intent.Symbol, intent.Action, intent.Side,
		intent.Quantity, intent.Price, intent.Reason, intent.Timestamp.UTC())
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: order intent %s: %w", ports.ErrDuplicateEntry, intent.ClientOrderID, err)
		}
		return fmt.Errorf("%w: failed to journal order intent %s: %w", ports.ErrQueryFailed, intent.ClientOrderID, err)
	}
	return nil
}

// FindOrderIntents returns the journaled intents of a position in submission order.
func (r *Repository) FindOrderIntents(ctx context.Context, positionID int64) ([]domain.OrderIntent, error) {
	const query = `
	SELECT client_order_id, position_id, symbol, action, side, quantity, price, reason, created_at
	FROM order_intents WHERE position_id = ? ORDER BY created_at, rowid`

	rows, err := r.db.QueryContext(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query order intents for position %d: %w", ports.ErrQueryFailed, positionID, err)
	}
	defer rows.Close()

	var intents []domain.OrderIntent
	for rows.Next() {
		var in domain.OrderIntent
		var action, side string
		if err := rows.Scan(&in.ClientOrderID, &in.PositionID, &in.Symbol, &action, &side,
			&in.Quantity, &in.Price, &in.Reason, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: failed to scan order intent: %w", ports.ErrQueryFailed, err)
		}
		in.Action = domain.OrderAction(action)
		in.Side = domain.Side(side)
		intents = append(intents, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating order intent rows: %w", ports.ErrQueryFailed, err)
	}
	return intents, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var exitTime sql.NullTime
	var side, status, reason string
	err := s.Scan(
		&p.ID, &p.Symbol, &side, &p.EntryPrice, &p.ExitPrice, &p.Quantity,
		&p.EntryTime, &exitTime, &status, &reason, &p.PNL)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if exitTime.Valid {
		p.ExitTime = exitTime.Time
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	p.CloseReason = domain.CloseReason(reason)
	return p, nil
}

// scanTrade scans the shared trade columns; idDest receives the leading key column.
func scanTrade(s scanner, idDest interface{}, t *domain.TradeRecord) error {
	var side, reason string
	err := s.Scan(idDest, &t.PositionID, &t.Symbol, &side, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
		&t.EntryTime, &t.ExitTime, &reason, &t.PNL, &t.Costs, &t.NetPNL)
	if err != nil {
		return err
	}
	t.Side = domain.Side(side)
	t.CloseReason = domain.CloseReason(reason)
	t.Holding = t.ExitTime.Sub(t.EntryTime)
	return nil
}
