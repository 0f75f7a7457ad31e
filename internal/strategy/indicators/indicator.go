package indicators

import (
	"context"
	"math"

	"niftyGreeksBot/internal/domain"
)

// Indicator represents a technical indicator computed from closing prices
type Indicator interface {
	// Calculate computes the indicator value at the last bar
	Calculate(ctx context.Context, bars []domain.Bar) (float64, error)

	// RequiredDataPoints returns the minimum number of bars needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// SeriesIndicator is implemented by indicators that can compute every bar's
// value in one forward pass.
type SeriesIndicator interface {
	Indicator
	Series(ctx context.Context, bars []domain.Bar) ([]float64, error)
}

// Series evaluates ind at every bar. Positions before the indicator has enough
// history hold NaN. Indicators without a rolling form are recomputed over each
// prefix.
func Series(ctx context.Context, ind Indicator, bars []domain.Bar) ([]float64, error) {
	if rolling, ok := ind.(SeriesIndicator); ok {
		return rolling.Series(ctx, bars)
	}
	out := warmUp(len(bars), ind.RequiredDataPoints())
	for i := max(ind.RequiredDataPoints()-1, 0); i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := ind.Calculate(ctx, bars[:i+1])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// warmUp returns n values with the first need-1 set to NaN.
func warmUp(n, need int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n && i+1 < need; i++ {
		out[i] = math.NaN()
	}
	return out
}
