package ports

import (
	"context"

	"niftyGreeksBot/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving positions.
type PositionRepository interface {
	// Create saves a new position under the ID assigned by the state machine.
	Create(ctx context.Context, pos *domain.Position) error
	// Update modifies an existing position.
	Update(ctx context.Context, pos *domain.Position) error
	// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
	// Returns nil, nil if no open position is found.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)
	// FindByID retrieves a position by its unique ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.Position, error)
	// LastID returns the highest stored position ID, or 0 when there are none.
	LastID(ctx context.Context) (int64, error)
}

// TradeRepository defines the interface for storing and retrieving completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.TradeRecord) (int64, error)
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error)
}

// OrderJournal records submitted order intents.
type OrderJournal interface {
	SaveOrderIntent(ctx context.Context, intent domain.OrderIntent) error
}

// BacktestRunRepository stores backtest runs for later analysis.
type BacktestRunRepository interface {
	// SaveRun stores the run, replacing any earlier run with the same ID.
	SaveRun(ctx context.Context, run *domain.BacktestRun) error
	// ListRuns returns stored runs without their trades, newest first.
	// A non-positive limit returns every run.
	ListRuns(ctx context.Context, limit int) ([]*domain.BacktestRun, error)
	// FindRunTrades returns the trades of a run in exit order.
	FindRunTrades(ctx context.Context, runID string) ([]domain.TradeRecord, error)
}
