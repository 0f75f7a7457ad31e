package indicators

import (
	"context"
	"fmt"

	"niftyGreeksBot/internal/domain"
)

// RSISmoothing selects how average gains and losses are computed.
type RSISmoothing string

const (
	// SimpleSmoothing averages the last Period changes with equal weight.
	SimpleSmoothing RSISmoothing = "simple"
	// WilderSmoothing seeds with a simple average and then applies Wilder's recursion.
	WilderSmoothing RSISmoothing = "wilder"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Smoothing RSISmoothing // Defaults to SimpleSmoothing
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) (*RSI, error) {
	if config.Period <= 0 {
		return nil, fmt.Errorf("RSI period must be positive, got %d", config.Period)
	}
	switch config.Smoothing {
	case "":
		config.Smoothing = SimpleSmoothing
	case SimpleSmoothing, WilderSmoothing:
	default:
		return nil, fmt.Errorf("unsupported RSI smoothing: %s", config.Smoothing)
	}
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}, nil
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints is one more than the period since RSI works on changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI value at the last bar
func (r *RSI) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := r.Config.Period
	if len(bars) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(bars), period)
	}

	changes := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		changes = append(changes, bars[i].Close-bars[i-1].Close)
	}

	var avgGain, avgLoss float64
	if r.config.Smoothing == WilderSmoothing {
		avgGain, avgLoss = wilderAverages(changes, period)
	} else {
		avgGain, avgLoss = simpleAverages(changes[len(changes)-period:])
	}

	return rsiValue(avgGain, avgLoss), nil
}

// Series computes RSI at every bar in one pass. Values match Calculate over
// each prefix.
func (r *RSI) Series(ctx context.Context, bars []domain.Bar) ([]float64, error) {
	period := r.Config.Period
	out := warmUp(len(bars), r.RequiredDataPoints())
	if len(bars) <= period {
		return out, nil
	}

	changes := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		changes = append(changes, bars[i].Close-bars[i-1].Close)
	}

	avgGain, avgLoss := simpleAverages(changes[:period])
	out[period] = rsiValue(avgGain, avgLoss)
	p := float64(period)
	for i := period + 1; i < len(bars); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := changes[i-1]
		if r.config.Smoothing == WilderSmoothing {
			avgGain, avgLoss = wilderStep(avgGain, avgLoss, c, p)
		} else {
			avgGain, avgLoss = simpleAverages(changes[i-period : i])
		}
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // Neutral if no change
		}
		return 100 // Max RSI if only gains
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi
}

func simpleAverages(changes []float64) (avgGain, avgLoss float64) {
	for _, c := range changes {
		if c > 0 {
			avgGain += c
		} else {
			avgLoss -= c
		}
	}
	n := float64(len(changes))
	return avgGain / n, avgLoss / n
}

func wilderAverages(changes []float64, period int) (avgGain, avgLoss float64) {
	avgGain, avgLoss = simpleAverages(changes[:period])
	p := float64(period)
	for _, c := range changes[period:] {
		avgGain, avgLoss = wilderStep(avgGain, avgLoss, c, p)
	}
	return avgGain, avgLoss
}

func wilderStep(avgGain, avgLoss, change, p float64) (float64, float64) {
	if change > 0 {
		return (avgGain*(p-1) + change) / p, (avgLoss * (p - 1)) / p
	}
	return (avgGain * (p - 1)) / p, (avgLoss*(p-1) - change) / p
}
