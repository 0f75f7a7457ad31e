package risk

import (
	"fmt"

	"niftyGreeksBot/internal/domain"
)

// thresholdEpsilon absorbs float rounding so a move of exactly the configured
// percentage triggers the exit.
const thresholdEpsilon = 1e-9

// RiskConfig holds the exit thresholds as fractions of the entry price.
type RiskConfig struct {
	StopLossPercent   float64
	TakeProfitPercent float64
}

// RiskManager decides whether an open position must be exited on price.
// It holds no state beyond its configuration.
type RiskManager struct {
	config RiskConfig
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) (*RiskManager, error) {
	if config.StopLossPercent <= 0 || config.TakeProfitPercent <= 0 {
		return nil, fmt.Errorf("%w: stop loss %v and take profit %v must be positive",
			domain.ErrInvalidPolicy, config.StopLossPercent, config.TakeProfitPercent)
	}
	return &RiskManager{config: config}, nil
}

// FromPolicy builds a risk manager from the policy exit thresholds.
func FromPolicy(p domain.Policy) (*RiskManager, error) {
	return NewRiskManager(RiskConfig{StopLossPercent: p.StopLossPct, TakeProfitPercent: p.TakeProfitPct})
}

// Evaluate returns the exit verdict for position at price.
// Stop-loss is checked first and both bounds are inclusive.
func (r *RiskManager) Evaluate(position domain.Position, price float64) domain.RiskAction {
	pct := position.ReturnPct(price)
	if pct <= -r.config.StopLossPercent+thresholdEpsilon {
		return domain.RiskStopLoss
	}
	if pct >= r.config.TakeProfitPercent-thresholdEpsilon {
		return domain.RiskTakeProfit
	}
	return domain.RiskHold
}

// GetStopLoss calculates the stop loss price for a position
func (r *RiskManager) GetStopLoss(entryPrice float64, side domain.Side) float64 {
	if side == domain.Long {
		return entryPrice * (1 - r.config.StopLossPercent)
	}
	return entryPrice * (1 + r.config.StopLossPercent)
}

// GetTakeProfit calculates the take profit price for a position
func (r *RiskManager) GetTakeProfit(entryPrice float64, side domain.Side) float64 {
	if side == domain.Long {
		return entryPrice * (1 + r.config.TakeProfitPercent)
	}
	return entryPrice * (1 - r.config.TakeProfitPercent)
}

// Config returns a copy of the configuration.
func (r *RiskManager) Config() RiskConfig {
	return r.config
}
