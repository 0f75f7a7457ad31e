package indicators

import (
	"context"
	"fmt"

	"niftyGreeksBot/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) (*MovingAverage, error) {
	if config.Period <= 0 {
		return nil, fmt.Errorf("moving average period must be positive, got %d", config.Period)
	}
	if config.Type == "" {
		config.Type = SimpleMovingAverage
	}
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}, nil
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.calculateSMA(bars)
	case ExponentialMovingAverage:
		return m.calculateEMA(bars)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// Series computes the moving average at every bar in one pass. Values match
// Calculate over each prefix.
func (m *MovingAverage) Series(ctx context.Context, bars []domain.Bar) ([]float64, error) {
	period := m.Config.Period
	out := warmUp(len(bars), period)
	if len(bars) < period {
		return out, nil
	}

	switch m.config.Type {
	case SimpleMovingAverage:
		for i := period - 1; i < len(bars); i++ {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			out[i], _ = m.calculateSMA(bars[i+1-period : i+1])
		}
	case ExponentialMovingAverage:
		multiplier := 2.0 / float64(period+1)
		ema, _ := m.calculateSMA(bars[:period])
		out[period-1] = ema
		for i := period; i < len(bars); i++ {
			ema = (bars[i].Close-ema)*multiplier + ema
			out[i] = ema
		}
	default:
		return nil, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
	return out, nil
}

// calculateSMA computes the Simple Moving Average
func (m *MovingAverage) calculateSMA(bars []domain.Bar) (float64, error) {
	if len(bars) < m.Config.Period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(bars), m.Config.Period)
	}

	total := 0.0
	for _, bar := range bars[len(bars)-m.Config.Period:] {
		total += bar.Close
	}
	return total / float64(m.Config.Period), nil
}

// calculateEMA computes the Exponential Moving Average
func (m *MovingAverage) calculateEMA(bars []domain.Bar) (float64, error) {
	if len(bars) < m.Config.Period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(bars), m.Config.Period)
	}

	multiplier := 2.0 / float64(m.Config.Period+1)

	// Seed with the SMA of the first period bars
	initialSMA, err := m.calculateSMA(bars[:m.Config.Period])
	if err != nil {
		return 0, fmt.Errorf("failed to calculate initial SMA for EMA: %w", err)
	}
	ema := initialSMA

	for _, bar := range bars[m.Config.Period:] {
		ema = (bar.Close-ema)*multiplier + ema
	}

	return ema, nil
}
