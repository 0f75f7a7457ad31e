package indicators

import (
	"context"
	"math"
	"testing"
)

func TestRSI_Calculate(t *testing.T) {
	bars := barsFromCloses(100, 102, 101, 103, 102, 104)

	tests := []struct {
		name          string
		config        RSIConfig
		closes        []float64
		expectedValue float64
		expectError   bool
	}{
		{
			name:          "simple smoothing over the last period",
			config:        RSIConfig{IndicatorConfig: IndicatorConfig{Period: 3}},
			closes:        []float64{100, 102, 101, 103, 102, 104},
			expectedValue: 80, // gains 4/3, losses 1/3
		},
		{
			name:          "Wilder smoothing",
			config:        RSIConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Smoothing: WilderSmoothing},
			closes:        []float64{100, 102, 101, 103, 102, 104},
			expectedValue: 77.272727,
		},
		{
			name:        "Insufficient data",
			config:      RSIConfig{IndicatorConfig: IndicatorConfig{Period: 7}},
			closes:      []float64{100, 102, 101, 103, 102, 104},
			expectError: true,
		},
		{
			name:          "All gains",
			config:        RSIConfig{IndicatorConfig: IndicatorConfig{Period: 3}},
			closes:        []float64{100, 102, 104, 106},
			expectedValue: 100,
		},
		{
			name:          "All losses",
			config:        RSIConfig{IndicatorConfig: IndicatorConfig{Period: 3}},
			closes:        []float64{106, 104, 102, 100},
			expectedValue: 0,
		},
		{
			name:          "No change",
			config:        RSIConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Smoothing: WilderSmoothing},
			closes:        []float64{100, 100, 100, 100},
			expectedValue: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi, err := NewRSI(tt.config)
			if err != nil {
				t.Fatalf("unexpected constructor error: %v", err)
			}
			value, err := rsi.Calculate(context.Background(), barsFromCloses(tt.closes...))
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
				t.Errorf("Expected RSI %f, got %f", tt.expectedValue, value)
			}
		})
	}

	rsi, err := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsi.RequiredDataPoints() != 4 {
		t.Errorf("Expected 4 required points, got %d", rsi.RequiredDataPoints())
	}
	series, err := Series(context.Background(), rsi, bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(series[2]) || math.IsNaN(series[3]) {
		t.Errorf("unexpected warm-up boundary: %v", series)
	}
}

func TestNewRSIValidation(t *testing.T) {
	if _, err := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 0}}); err == nil {
		t.Error("Expected error for zero period")
	}
	if _, err := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Smoothing: "ema"}); err == nil {
		t.Error("Expected error for unknown smoothing")
	}
}
