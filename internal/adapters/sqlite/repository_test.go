package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var ist = time.FixedZone("IST", 5*3600+1800)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func openPosition(id int64, entry time.Time) *domain.Position {
	return &domain.Position{
		ID:         id,
		Symbol:     "NIFTY",
		Side:       domain.Long,
		EntryPrice: 22000.5,
		EntryTime:  entry,
		Quantity:   50,
		Status:     domain.StatusOpen,
	}
}

func TestRepository_CreateAndFindPosition(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Repository) error
		pos     *domain.Position
		wantErr error
	}{
		{
			name: "valid position",
			pos:  openPosition(1, time.Date(2024, 3, 1, 10, 0, 0, 0, ist)),
		},
		{
			name: "duplicate position ID",
			setup: func(r *Repository) error {
				return r.Create(context.Background(), openPosition(1, time.Date(2024, 3, 1, 10, 0, 0, 0, ist)))
			},
			pos:     openPosition(1, time.Date(2024, 3, 1, 11, 0, 0, 0, ist)),
			wantErr: ports.ErrDuplicateEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			ctx := context.Background()

			if tt.setup != nil {
				require.NoError(t, tt.setup(repo))
			}

			err := repo.Create(ctx, tt.pos)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			found, err := repo.FindByID(ctx, tt.pos.ID)
			require.NoError(t, err)
			require.NotNil(t, found)

			assert.Equal(t, tt.pos.Symbol, found.Symbol)
			assert.Equal(t, tt.pos.Side, found.Side)
			assert.Equal(t, tt.pos.EntryPrice, found.EntryPrice)
			assert.Equal(t, tt.pos.Quantity, found.Quantity)
			assert.Equal(t, tt.pos.Status, found.Status)
			assert.True(t, tt.pos.EntryTime.Equal(found.EntryTime))
			assert.Empty(t, found.CloseReason)
		})
	}
}

func TestRepository_UpdatePosition(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	pos := openPosition(3, time.Date(2024, 3, 1, 10, 0, 0, 0, ist))
	require.NoError(t, repo.Create(ctx, pos))

	pos.Status = domain.StatusClosed
	pos.ExitPrice = 22100.5
	pos.ExitTime = pos.EntryTime.Add(30 * time.Minute)
	pos.PNL = 5000
	pos.CloseReason = domain.CloseReasonTakeProfit
	require.NoError(t, repo.Update(ctx, pos))

	found, err := repo.FindByID(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.StatusClosed, found.Status)
	assert.Equal(t, 22100.5, found.ExitPrice)
	assert.Equal(t, 5000.0, found.PNL)
	assert.Equal(t, domain.CloseReasonTakeProfit, found.CloseReason)
	assert.True(t, pos.ExitTime.Equal(found.ExitTime))

	total, err := repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, total)

	missing := openPosition(999, pos.EntryTime)
	assert.ErrorIs(t, repo.Update(ctx, missing), ports.ErrNotFound)
}

func TestRepository_FindOpenBySymbolAndLastID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	got, err := repo.FindOpenBySymbol(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Nil(t, got)

	last, err := repo.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	closed := openPosition(4, time.Date(2024, 3, 1, 10, 0, 0, 0, ist))
	require.NoError(t, repo.Create(ctx, closed))
	closed.Status = domain.StatusClosed
	closed.ExitTime = closed.EntryTime.Add(time.Minute)
	closed.CloseReason = domain.CloseReasonStopLoss
	require.NoError(t, repo.Update(ctx, closed))

	open := openPosition(5, time.Date(2024, 3, 1, 11, 0, 0, 0, ist))
	open.Side = domain.Short
	require.NoError(t, repo.Create(ctx, open))

	got, err = repo.FindOpenBySymbol(ctx, "NIFTY")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, domain.Short, got.Side)
	assert.True(t, got.IsOpen())

	last, err = repo.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)

	notFound, err := repo.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, notFound)
}

func TestRepository_TradeHistory(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, ist)
	for i := 0; i < 3; i++ {
		pos := domain.Position{
			ID: int64(i + 1), Symbol: "NIFTY", Side: domain.Long, Quantity: 50,
			EntryPrice: 100, EntryTime: base.Add(time.Duration(i) * time.Hour),
			ExitPrice: 101, ExitTime: base.Add(time.Duration(i)*time.Hour + 10*time.Minute),
			Status: domain.StatusClosed, CloseReason: domain.CloseReasonTakeProfit, PNL: 50,
		}
		trade := domain.NewTradeRecord(pos, 20)
		id, err := repo.CreateTrade(ctx, &trade)
		require.NoError(t, err)
		assert.Equal(t, id, trade.ID)
	}

	trades, err := repo.FindBySymbol(ctx, "NIFTY", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(3), trades[0].PositionID, "most recent first")
	assert.Equal(t, 40.0, trades[0].Costs)
	assert.Equal(t, 10.0, trades[0].NetPNL)
	assert.Equal(t, 10*time.Minute, trades[0].Holding)

	none, err := repo.FindBySymbol(ctx, "BANKNIFTY", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_OrderIntents(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, ist)
	intent := domain.OrderIntent{
		ClientOrderID: "a1", PositionID: 7, Symbol: "NIFTY", Action: domain.Buy,
		Side: domain.Long, Quantity: 50, Price: 22000.05, Reason: domain.IntentReasonEntry, Timestamp: at,
	}
	require.NoError(t, repo.SaveOrderIntent(ctx, intent))
	assert.ErrorIs(t, repo.SaveOrderIntent(ctx, intent), ports.ErrDuplicateEntry)

	exit := intent
	exit.ClientOrderID = "a2"
	exit.Action = domain.Sell
	exit.Reason = string(domain.CloseReasonStopLoss)
	exit.Timestamp = at.Add(time.Minute)
	require.NoError(t, repo.SaveOrderIntent(ctx, exit))

	intents, err := repo.FindOrderIntents(ctx, 7)
	require.NoError(t, err)
	require.Len(t, intents, 2)
	assert.Equal(t, domain.Buy, intents[0].Action)
	assert.Equal(t, domain.Sell, intents[1].Action)
	assert.Equal(t, "STOP_LOSS", intents[1].Reason)
}

func TestRepository_BacktestRuns(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	from := time.Date(2024, 3, 1, 9, 20, 0, 0, ist)
	pos := domain.Position{
		ID: 1, Symbol: "NIFTY", Side: domain.Short, Quantity: 50,
		EntryPrice: 100, EntryTime: from.Add(time.Hour),
		ExitPrice: 99, ExitTime: from.Add(2 * time.Hour),
		Status: domain.StatusClosed, CloseReason: domain.CloseReasonTimeExit, PNL: 50,
	}
	run := &domain.BacktestRun{
		ID:        "run-1",
		Symbol:    "NIFTY",
		CreatedAt: from.Add(24 * time.Hour),
		DataFrom:  from,
		DataTo:    from.Add(6 * time.Hour),
		Snapshots: 72,
		Policy: domain.Policy{
			Symbol:      "NIFTY",
			Signal:      domain.SignalThresholds{DeltaLong: 0.5, RSIOversold: 30, RSIOverbought: 70, VIXCeiling: 20},
			StopLossPct: 0.01, TakeProfitPct: 0.02, LotSize: 50, CostPerOrder: 20,
			Window: domain.TradingWindow{
				Start: domain.ClockTime{Hour: 9, Minute: 20}, End: domain.ClockTime{Hour: 15, Minute: 15}, Location: time.UTC,
			},
		},
		Summary: domain.PerformanceSummary{TotalTrades: 1, WinningTrades: 1, NetPNL: 10, ProfitFactor: math.Inf(1)},
		Trades:  []domain.TradeRecord{domain.NewTradeRecord(pos, 20)},
	}
	require.NoError(t, repo.SaveRun(ctx, run))

	// Saving again under the same ID replaces the run and its trades.
	run.Snapshots = 80
	require.NoError(t, repo.SaveRun(ctx, run))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, 80, got.Snapshots)
	assert.True(t, math.IsInf(got.Summary.ProfitFactor, 1))
	assert.Equal(t, 10.0, got.Summary.NetPNL)
	assert.Equal(t, run.Policy.Window.End, got.Policy.Window.End)
	assert.Equal(t, 0.01, got.Policy.StopLossPct)
	assert.Empty(t, got.Trades)

	trades, err := repo.FindRunTrades(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.CloseReasonTimeExit, trades[0].CloseReason)
	assert.Equal(t, domain.Short, trades[0].Side)
	assert.Equal(t, 10.0, trades[0].NetPNL)
}
