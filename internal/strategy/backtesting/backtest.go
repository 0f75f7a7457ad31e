package backtesting

import (
	"context"
	"fmt"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/engine"
	"niftyGreeksBot/internal/ports"
	"niftyGreeksBot/internal/strategy/analytics"
)

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	Policy       domain.Policy
	InitialFunds float64
	// Evaluator overrides the threshold evaluator built from Policy.
	Evaluator ports.SignalEvaluator
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	Trades      []domain.TradeRecord
	Events      []domain.LifecycleEvent
	Summary     domain.PerformanceSummary
	EquityCurve []domain.EquityPoint // Mark-to-market equity after every snapshot
	Snapshots   int
	From        time.Time
	To          time.Time
}

// Backtest replays snapshots through a fresh state machine.
//
// The whole sequence is validated before the first step: a malformed or
// out-of-order snapshot aborts the run with no result. A position still open
// after the last snapshot is closed at its price with TIME_EXIT.
// The context is checked between snapshots only.
func Backtest(ctx context.Context, snapshots []domain.MarketSnapshot, config BacktestConfig) (*BacktestResult, error) {
	if err := ValidateSequence(snapshots); err != nil {
		return nil, err
	}

	var opts []engine.Option
	if config.Evaluator != nil {
		opts = append(opts, engine.WithEvaluator(config.Evaluator))
	}
	machine, err := engine.New(config.Policy, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}

	result := &BacktestResult{
		Snapshots:   len(snapshots),
		From:        snapshots[0].Timestamp,
		To:          snapshots[len(snapshots)-1].Timestamp,
		EquityCurve: make([]domain.EquityPoint, 0, len(snapshots)),
	}

	realized := config.InitialFunds
	peak := config.InitialFunds
	record := func(ev domain.LifecycleEvent) {
		result.Events = append(result.Events, ev)
		if ev.Type == domain.EventClose {
			trade := domain.NewTradeRecord(ev.Position, config.Policy.CostPerOrder)
			result.Trades = append(result.Trades, trade)
			realized += trade.NetPNL
		}
	}

	for i, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: backtest stopped at snapshot %d: %w", ports.ErrContextCanceled, i, err)
		}

		ev, err := machine.Step(snap)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, snap.Timestamp.Format(time.RFC3339), err)
		}
		if ev != nil {
			record(*ev)
		}

		if i == len(snapshots)-1 && !machine.IsFlat() {
			ev, err := machine.Close(snap, domain.CloseReasonTimeExit)
			if err != nil {
				return nil, fmt.Errorf("failed to close position at end of data: %w", err)
			}
			record(ev)
		}

		equity := realized + machine.UnrealizedPNL(snap.Price)
		if equity > peak {
			peak = equity
		}
		point := domain.EquityPoint{Time: snap.Timestamp, Equity: equity}
		if peak > 0 && equity < peak {
			point.Drawdown = (peak - equity) / peak
		}
		result.EquityCurve = append(result.EquityCurve, point)
	}

	result.Summary = analytics.Summarize(result.Trades, config.InitialFunds)
	return result, nil
}

// ValidateSequence checks that every snapshot is well formed and that
// timestamps strictly increase.
func ValidateSequence(snapshots []domain.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return ports.ErrNoData
	}
	for i, snap := range snapshots {
		if err := snap.Validate(); err != nil {
			return fmt.Errorf("snapshot %d: %w", i, err)
		}
		if i > 0 && !snap.Timestamp.After(snapshots[i-1].Timestamp) {
			return fmt.Errorf("%w: snapshot %d at %s does not follow %s", ports.ErrOutOfOrder, i,
				snap.Timestamp.Format(time.RFC3339), snapshots[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
