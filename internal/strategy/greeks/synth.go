// Package greeks derives market snapshots from plain index bars when no option
// chain history is available. Greeks are simulated from price moves.
package greeks

import (
	"context"
	"fmt"
	"math"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/strategy/indicators"
)

// Starting values of the simulated option legs at each session open.
const (
	baseCallDelta = 0.5
	basePutDelta  = -0.5
	baseGamma     = 0.05
	baseTheta     = -0.1
	baseVega      = 0.2

	maxAbsDelta  = 0.95
	minGamma     = 0.01
	deltaPerMove = 0.5  // Delta shift per unit of fractional return
	gammaDecay   = 0.1  // Gamma lost per unit of delta away from ATM
	thetaGrowth  = 1.01 // Per-bar theta acceleration
	vegaDecay    = 0.99 // Per-bar vega decay
)

// Config controls snapshot synthesis.
type Config struct {
	Symbol       string
	RSIPeriod    int
	RSISmoothing indicators.RSISmoothing
	MAPeriod     int
	MAType       indicators.MovingAverageType
	BaseVIX      float64        // Used for bars without a VIX value
	Location     *time.Location // Session days are split in this location
}

// BuildSnapshots turns bars into snapshots. Bars before RSI and MA have enough
// history produce no snapshot. The output is a pure function of the input.
func BuildSnapshots(ctx context.Context, bars []domain.Bar, cfg Config) ([]domain.MarketSnapshot, error) {
	if cfg.BaseVIX <= 0 {
		return nil, fmt.Errorf("base VIX must be positive, got %v", cfg.BaseVIX)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	rsi, err := indicators.NewRSI(indicators.RSIConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
		Smoothing:       cfg.RSISmoothing,
	})
	if err != nil {
		return nil, err
	}
	ma, err := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.MAPeriod},
		Type:            cfg.MAType,
	})
	if err != nil {
		return nil, err
	}

	rsiSeries, err := indicators.Series(ctx, rsi, bars)
	if err != nil {
		return nil, fmt.Errorf("failed to compute RSI: %w", err)
	}
	maSeries, err := indicators.Series(ctx, ma, bars)
	if err != nil {
		return nil, fmt.Errorf("failed to compute moving average: %w", err)
	}

	var (
		out     = make([]domain.MarketSnapshot, 0, len(bars))
		sim     legState
		lastDay string
	)
	for i, bar := range bars {
		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("bar %d at %s is not after %s", i, bar.Time, bars[i-1].Time)
		}
		if bar.Close <= 0 {
			return nil, fmt.Errorf("bar %d has non-positive close %v", i, bar.Close)
		}
		day := bar.Time.In(loc).Format("2006-01-02")
		if day != lastDay {
			sim = newLegState()
			lastDay = day
		} else {
			sim.advance(bar.Close/bars[i-1].Close - 1)
		}

		if math.IsNaN(rsiSeries[i]) || math.IsNaN(maSeries[i]) {
			continue
		}
		vix := bar.VIX
		if vix <= 0 {
			vix = cfg.BaseVIX
		}
		snap := domain.MarketSnapshot{
			Timestamp: bar.Time,
			Symbol:    cfg.Symbol,
			Price:     bar.Close,
			Call:      domain.Greeks{Delta: sim.callDelta, Gamma: sim.gamma, Theta: sim.theta, Vega: sim.vega},
			Put:       domain.Greeks{Delta: sim.putDelta, Gamma: sim.gamma, Theta: sim.theta, Vega: sim.vega},
			RSI:       rsiSeries[i],
			MA:        maSeries[i],
			VIX:       vix,
		}
		if err := snap.Validate(); err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// legState is the simulated state of the ATM call and put for one session.
type legState struct {
	callDelta, putDelta float64
	gamma, theta, vega  float64
}

func newLegState() legState {
	return legState{
		callDelta: baseCallDelta,
		putDelta:  basePutDelta,
		gamma:     baseGamma,
		theta:     baseTheta,
		vega:      baseVega,
	}
}

// advance moves the legs by one bar with the given close-to-close return.
func (s *legState) advance(ret float64) {
	s.callDelta = clampDelta(s.callDelta + ret*deltaPerMove)
	s.putDelta = clampDelta(s.putDelta - ret*deltaPerMove)
	s.gamma = math.Max(minGamma, baseGamma-math.Abs(s.callDelta-baseCallDelta)*gammaDecay)
	s.theta *= thetaGrowth
	s.vega *= vegaDecay
}

func clampDelta(d float64) float64 {
	return math.Max(-maxAbsDelta, math.Min(maxAbsDelta, d))
}
