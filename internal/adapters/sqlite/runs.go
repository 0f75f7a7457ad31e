package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// policyRecord is the stored form of a policy. The location is kept by name
// because time.Location has no JSON encoding.
type policyRecord struct {
	Symbol        string                  `json:"symbol"`
	Signal        domain.SignalThresholds `json:"signal"`
	StopLossPct   float64                 `json:"stop_loss_pct"`
	TakeProfitPct float64                 `json:"take_profit_pct"`
	WindowStart   string                  `json:"window_start"`
	WindowEnd     string                  `json:"window_end"`
	Location      string                  `json:"location"`
	LotSize       int                     `json:"lot_size"`
	RSIPeriod     int                     `json:"rsi_period"`
	MAPeriod      int                     `json:"ma_period"`
	CostPerOrder  float64                 `json:"cost_per_order"`
}

func toPolicyRecord(p domain.Policy) policyRecord {
	return policyRecord{
		Symbol:        p.Symbol,
		Signal:        p.Signal,
		StopLossPct:   p.StopLossPct,
		TakeProfitPct: p.TakeProfitPct,
		WindowStart:   p.Window.Start.String(),
		WindowEnd:     p.Window.End.String(),
		Location:      p.Window.Loc().String(),
		LotSize:       p.LotSize,
		RSIPeriod:     p.RSIPeriod,
		MAPeriod:      p.MAPeriod,
		CostPerOrder:  p.CostPerOrder,
	}
}

func (r policyRecord) policy() (domain.Policy, error) {
	start, err := domain.ParseClock(r.WindowStart)
	if err != nil {
		return domain.Policy{}, err
	}
	end, err := domain.ParseClock(r.WindowEnd)
	if err != nil {
		return domain.Policy{}, err
	}
	loc, err := time.LoadLocation(r.Location)
	if err != nil {
		return domain.Policy{}, err
	}
	return domain.Policy{
		Symbol:        r.Symbol,
		Signal:        r.Signal,
		StopLossPct:   r.StopLossPct,
		TakeProfitPct: r.TakeProfitPct,
		Window:        domain.TradingWindow{Start: start, End: end, Location: loc},
		LotSize:       r.LotSize,
		RSIPeriod:     r.RSIPeriod,
		MAPeriod:      r.MAPeriod,
		CostPerOrder:  r.CostPerOrder,
	}, nil
}

// --- BacktestRunRepository Implementation ---

// SaveRun stores the run and its trades in one transaction, replacing any
// earlier run with the same ID.
func (r *Repository) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	policyJSON, err := json.Marshal(toPolicyRecord(run.Policy))
	if err != nil {
		return fmt.Errorf("failed to encode policy of run %s: %w", run.ID, err)
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary of run %s: %w", run.ID, err)
	}
	var pf sql.NullFloat64
	if !math.IsInf(run.Summary.ProfitFactor, 0) && !math.IsNaN(run.Summary.ProfitFactor) {
		pf = sql.NullFloat64{Float64: run.Summary.ProfitFactor, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ports.ErrDBConnection, err)
	}
	defer tx.Rollback() // No-op after Commit

	const upsert = `
	INSERT OR REPLACE INTO backtest_runs (id, symbol, created_at, data_from, data_to, snapshots,
	                                      total_trades, net_pnl, return_pct, profit_factor, policy_json, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, upsert,
		run.ID, run.Symbol, run.CreatedAt.UTC(), run.DataFrom.UTC(), run.DataTo.UTC(), run.Snapshots,
		run.Summary.TotalTrades, run.Summary.NetPNL, run.Summary.ReturnPct, pf,
		string(policyJSON), string(summaryJSON)); err != nil {
		return fmt.Errorf("%w: failed to save backtest run %s: %w", ports.ErrQueryFailed, run.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM backtest_trades WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("%w: failed to clear trades of run %s: %w", ports.ErrQueryFailed, run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO backtest_trades (run_id, seq, position_id, symbol, side, quantity, entry_price, exit_price,
	                             entry_time, exit_time, close_reason, pnl, costs, net_pnl)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: failed to prepare trade insert: %w", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	for i, t := range run.Trades {
		if _, err := stmt.ExecContext(ctx, run.ID, i, t.PositionID, t.Symbol, t.Side, t.Quantity,
			t.EntryPrice, t.ExitPrice, t.EntryTime.UTC(), t.ExitTime.UTC(), t.CloseReason,
			t.PNL, t.Costs, t.NetPNL); err != nil {
			return fmt.Errorf("%w: failed to save trade %d of run %s: %w", ports.ErrQueryFailed, i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit run %s: %w", ports.ErrQueryFailed, run.ID, err)
	}
	r.logger.Debug(ctx, "Backtest run saved", map[string]interface{}{"runID": run.ID, "trades": len(run.Trades)})
	return nil
}

// ListRuns returns stored runs without their trades, newest first. A
// non-positive limit returns every run.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*domain.BacktestRun, error) {
	if limit <= 0 {
		limit = -1
	}
	const query = `
	SELECT id, symbol, created_at, data_from, data_to, snapshots, profit_factor, policy_json, summary_json
	FROM backtest_runs ORDER BY created_at DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query backtest runs: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		run := &domain.BacktestRun{}
		var pf sql.NullFloat64
		var policyJSON, summaryJSON string
		if err := rows.Scan(&run.ID, &run.Symbol, &run.CreatedAt, &run.DataFrom, &run.DataTo,
			&run.Snapshots, &pf, &policyJSON, &summaryJSON); err != nil {
			return nil, fmt.Errorf("%w: failed to scan backtest run: %w", ports.ErrQueryFailed, err)
		}

		var rec policyRecord
		if err := json.Unmarshal([]byte(policyJSON), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode policy of run %s: %w", run.ID, err)
		}
		if run.Policy, err = rec.policy(); err != nil {
			return nil, fmt.Errorf("failed to decode policy of run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(summaryJSON), &run.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary of run %s: %w", run.ID, err)
		}
		run.Summary.ProfitFactor = pf.Float64
		if !pf.Valid {
			run.Summary.ProfitFactor = math.Inf(1)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating backtest run rows: %w", ports.ErrQueryFailed, err)
	}
	return runs, nil
}

// FindRunTrades returns the trades of a run in exit order.
func (r *Repository) FindRunTrades(ctx context.Context, runID string) ([]domain.TradeRecord, error) {
	const query = `
	SELECT seq, position_id, symbol, side, quantity, entry_price, exit_price,
	       entry_time, exit_time, close_reason, pnl, costs, net_pnl
	FROM backtest_trades WHERE run_id = ? ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trades of run %s: %w", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var seq int
		if err := scanTrade(rows, &seq, &t); err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade of run %s: %w", ports.ErrQueryFailed, runID, err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating trade rows of run %s: %w", ports.ErrQueryFailed, runID, err)
	}
	return trades, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
