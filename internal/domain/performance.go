package domain

import "time"

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Equity   float64   `json:"equity"`
	Drawdown float64   `json:"drawdown"` // Fraction below the running peak
}

// PerformanceSummary aggregates a sequence of trade records.
type PerformanceSummary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	GrossPNL      float64 `json:"gross_pnl"`
	TotalCosts    float64 `json:"total_costs"`
	NetPNL        float64 `json:"net_pnl"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	// ProfitFactor is gross profit over gross loss; +Inf when there are wins and no losses.
	ProfitFactor   float64 `json:"-"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	InitialCapital         float64             `json:"initial_capital"`
	FinalCapital           float64             `json:"final_capital"`
	ReturnPct              float64             `json:"return_pct"`
	SharpeRatio            float64             `json:"sharpe_ratio"` // Annualised over daily realized-equity returns
	MaxConsecutiveWins     int                 `json:"max_consecutive_wins"`
	MaxConsecutiveLosses   int                 `json:"max_consecutive_losses"`
	AverageHoldingDuration time.Duration       `json:"average_holding_duration"`
	ExitReasons            map[CloseReason]int `json:"exit_reasons"`
}

// BacktestRun is a persisted backtest with its inputs and outcome.
type BacktestRun struct {
	ID        string
	Symbol    string
	CreatedAt time.Time
	DataFrom  time.Time
	DataTo    time.Time
	Snapshots int
	Policy    Policy
	Summary   PerformanceSummary
	Trades    []TradeRecord
}
