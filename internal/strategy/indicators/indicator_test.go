package indicators

import (
	"context"
	"math"
	"testing"
)

// prefixOnly hides any rolling Series method so Series falls back to
// recomputing each prefix.
type prefixOnly struct {
	Indicator
}

func TestSeriesRollingMatchesPrefixes(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 22000 + 40*math.Sin(float64(i)/7) + float64(i%5)
	}
	bars := barsFromCloses(closes...)

	rsiSimple, _ := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	rsiWilder, _ := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Smoothing: WilderSmoothing})
	sma, _ := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 20}})
	ema, _ := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 20}, Type: ExponentialMovingAverage})

	tests := []struct {
		name string
		ind  Indicator
	}{
		{"RSI simple", rsiSimple},
		{"RSI wilder", rsiWilder},
		{"SMA", sma},
		{"EMA", ema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.ind.(SeriesIndicator); !ok {
				t.Fatalf("%s has no rolling series", tt.name)
			}
			rolling, err := Series(context.Background(), tt.ind, bars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			prefix, err := Series(context.Background(), prefixOnly{tt.ind}, bars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rolling) != len(prefix) {
				t.Fatalf("length mismatch: %d vs %d", len(rolling), len(prefix))
			}
			for i := range rolling {
				if math.IsNaN(prefix[i]) {
					if !math.IsNaN(rolling[i]) {
						t.Errorf("bar %d: expected NaN during warm-up, got %f", i, rolling[i])
					}
					continue
				}
				if math.Abs(rolling[i]-prefix[i]) > 1e-9 {
					t.Errorf("bar %d: rolling %f, prefix %f", i, rolling[i], prefix[i])
				}
			}
		})
	}
}

func TestSeriesShortInput(t *testing.T) {
	rsi, _ := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	series, err := Series(context.Background(), rsi, barsFromCloses(100, 101, 102))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range series {
		if !math.IsNaN(v) {
			t.Errorf("bar %d: expected NaN, got %f", i, v)
		}
	}
}
