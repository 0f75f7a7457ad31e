package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"niftyGreeksBot/internal/domain"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Time: start.Add(time.Duration(i) * 5 * time.Minute), Close: c}
	}
	return bars
}

func TestMovingAverage_Calculate(t *testing.T) {
	bars := barsFromCloses(100, 102, 101, 103, 104)

	tests := []struct {
		name          string
		config        MovingAverageConfig
		bars          []domain.Bar
		expectedValue float64
		expectError   bool
	}{
		{
			name: "SMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            SimpleMovingAverage,
			},
			bars:          bars,
			expectedValue: 102.666667, // (101 + 103 + 104) / 3
		},
		{
			name: "EMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            ExponentialMovingAverage,
			},
			bars:          bars,
			expectedValue: 103.0,
		},
		{
			name: "Insufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 6},
				Type:            SimpleMovingAverage,
			},
			bars:        bars,
			expectError: true,
		},
		{
			name: "Invalid MA type",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            "INVALID",
			},
			bars:        bars,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma, err := NewMovingAverage(tt.config)
			if err != nil {
				t.Fatalf("unexpected constructor error: %v", err)
			}
			value, err := ma.Calculate(context.Background(), tt.bars)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if math.Abs(value-tt.expectedValue) > 0.0001 {
				t.Errorf("Expected value %f, got %f", tt.expectedValue, value)
			}
		})
	}
}

func TestNewMovingAverageDefaults(t *testing.T) {
	if _, err := NewMovingAverage(MovingAverageConfig{}); err == nil {
		t.Error("Expected error for zero period")
	}
	ma, err := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 20}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ma.Name() != "SMA" {
		t.Errorf("Expected default SMA, got %s", ma.Name())
	}
	if ma.RequiredDataPoints() != 20 {
		t.Errorf("Expected 20 required points, got %d", ma.RequiredDataPoints())
	}
}

func TestSeries(t *testing.T) {
	ma, err := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	series, err := Series(context.Background(), ma, barsFromCloses(100, 102, 104))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(series[0]) {
		t.Errorf("Expected NaN during warm-up, got %f", series[0])
	}
	if series[1] != 101 || series[2] != 103 {
		t.Errorf("unexpected series: %v", series)
	}
}
