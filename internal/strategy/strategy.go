package strategy

import (
	"fmt"

	"niftyGreeksBot/internal/domain"
)

// Gate names reported in SignalDecision when a side is rejected.
const (
	GateDeltaGamma = "delta_gamma"
	GateThetaVega  = "theta_vega"
	GateRSI        = "rsi"
	GateMA         = "moving_average"
	GateVIX        = "vix"
)

type gate struct {
	name  string
	long  func(s domain.MarketSnapshot, th domain.SignalThresholds) bool
	short func(s domain.MarketSnapshot, th domain.SignalThresholds) bool
}

// gates is the ordered filter pipeline. Each side stops at its first failing gate.
var gates = []gate{
	{
		name: GateDeltaGamma,
		long: func(s domain.MarketSnapshot, th domain.SignalThresholds) bool {
			return s.Call.Delta > th.DeltaLong && s.Call.Gamma > th.GammaLong
		},
		short: func(s domain.MarketSnapshot, th domain.SignalThresholds) bool {
			return s.Put.Delta < -th.DeltaShort && s.Put.Gamma > th.GammaShort
		},
	},
	{
		name: GateThetaVega,
		long: func(s domain.MarketSnapshot, th domain.SignalThresholds) bool {
			return s.Call.Theta < -th.Theta && s.Call.Vega > th.Vega
		},
		short: func(s domain.MarketSnapshot, th domain.SignalThresholds) bool {
			return s.Put.Theta < -th.Theta && s.Put.Vega > th.Vega
		},
	},
	{
		name:  GateRSI,
		long:  func(s domain.MarketSnapshot, th domain.SignalThresholds) bool { return s.RSI < th.RSIOversold },
		short: func(s domain.MarketSnapshot, th domain.SignalThresholds) bool { return s.RSI > th.RSIOverbought },
	},
	{
		name:  GateMA,
		long:  func(s domain.MarketSnapshot, _ domain.SignalThresholds) bool { return s.Price > s.MA },
		short: func(s domain.MarketSnapshot, _ domain.SignalThresholds) bool { return s.Price < s.MA },
	},
	{
		name:  GateVIX,
		long:  func(s domain.MarketSnapshot, th domain.SignalThresholds) bool { return s.VIX < th.VIXCeiling },
		short: func(s domain.MarketSnapshot, th domain.SignalThresholds) bool { return s.VIX < th.VIXCeiling },
	},
}

// Evaluate runs the snapshot through the five gates for both sides.
// It returns LONG or SHORT only when exactly one side passes every gate;
// when both pass the decision is NONE.
func Evaluate(snapshot domain.MarketSnapshot, th domain.SignalThresholds) domain.SignalDecision {
	decision := domain.SignalDecision{
		Signal:          domain.SignalNone,
		Snapshot:        snapshot,
		LongRejectedBy:  firstFailure(snapshot, th, domain.Long),
		ShortRejectedBy: firstFailure(snapshot, th, domain.Short),
	}

	longOK := decision.LongRejectedBy == ""
	shortOK := decision.ShortRejectedBy == ""
	switch {
	case longOK && !shortOK:
		decision.Signal = domain.SignalLong
	case shortOK && !longOK:
		decision.Signal = domain.SignalShort
	}
	return decision
}

func firstFailure(s domain.MarketSnapshot, th domain.SignalThresholds, side domain.Side) string {
	for _, g := range gates {
		pass := g.long
		if side == domain.Short {
			pass = g.short
		}
		if !pass(s, th) {
			return g.name
		}
	}
	return ""
}

// Evaluator binds a threshold set to Evaluate and implements ports.SignalEvaluator.
type Evaluator struct {
	thresholds domain.SignalThresholds
}

// New creates an evaluator for the given thresholds.
func New(thresholds domain.SignalThresholds) (*Evaluator, error) {
	if thresholds.VIXCeiling <= 0 {
		return nil, fmt.Errorf("%w: VIX ceiling must be positive", domain.ErrInvalidPolicy)
	}
	return &Evaluator{thresholds: thresholds}, nil
}

// Evaluate implements ports.SignalEvaluator.
func (e *Evaluator) Evaluate(snapshot domain.MarketSnapshot) domain.SignalDecision {
	return Evaluate(snapshot, e.thresholds)
}

// Conditions flattens a decision into log fields.
func Conditions(d domain.SignalDecision) map[string]interface{} {
	s := d.Snapshot
	return map[string]interface{}{
		"signal":          string(d.Signal),
		"longRejectedBy":  d.LongRejectedBy,
		"shortRejectedBy": d.ShortRejectedBy,
		"ambiguous":       d.Ambiguous(),
		"price":           s.Price,
		"callDelta":       s.Call.Delta,
		"callGamma":       s.Call.Gamma,
		"putDelta":        s.Put.Delta,
		"putGamma":        s.Put.Gamma,
		"rsi":             s.RSI,
		"ma":              s.MA,
		"vix":             s.VIX,
	}
}
