package strategy

import (
	"testing"
	"time"

	"niftyGreeksBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testThresholds() domain.SignalThresholds {
	return domain.SignalThresholds{
		DeltaLong:     0.5,
		GammaLong:     0.01,
		DeltaShort:    0.5,
		GammaShort:    0.01,
		Theta:         0.02,
		Vega:          0.05,
		RSIOversold:   30,
		RSIOverbought: 70,
		VIXCeiling:    20,
	}
}

func longSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Symbol:    "NIFTY",
		Price:     100,
		Call:      domain.Greeks{Delta: 0.6, Gamma: 0.02, Theta: -0.03, Vega: 0.06},
		Put:       domain.Greeks{Delta: -0.4, Gamma: 0.02, Theta: -0.03, Vega: 0.06},
		RSI:       25,
		MA:        95,
		VIX:       15,
	}
}

func shortSnapshot() domain.MarketSnapshot {
	s := longSnapshot()
	s.Call.Delta = 0.4
	s.Put.Delta = -0.6
	s.RSI = 75
	s.MA = 105
	return s
}

func TestEvaluateLong(t *testing.T) {
	d := Evaluate(longSnapshot(), testThresholds())
	assert.Equal(t, domain.SignalLong, d.Signal)
	assert.Empty(t, d.LongRejectedBy)
	assert.Equal(t, GateDeltaGamma, d.ShortRejectedBy)
	assert.Equal(t, longSnapshot(), d.Snapshot)
}

func TestEvaluateShort(t *testing.T) {
	d := Evaluate(shortSnapshot(), testThresholds())
	assert.Equal(t, domain.SignalShort, d.Signal)
	assert.Empty(t, d.ShortRejectedBy)
	assert.Equal(t, GateDeltaGamma, d.LongRejectedBy)
}

func TestEvaluateGates(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(s *domain.MarketSnapshot)
		wantReject string
	}{
		{"call delta at threshold", func(s *domain.MarketSnapshot) { s.Call.Delta = 0.5 }, GateDeltaGamma},
		{"call gamma too low", func(s *domain.MarketSnapshot) { s.Call.Gamma = 0.005 }, GateDeltaGamma},
		{"theta not negative enough", func(s *domain.MarketSnapshot) { s.Call.Theta = -0.01 }, GateThetaVega},
		{"vega too low", func(s *domain.MarketSnapshot) { s.Call.Vega = 0.05 }, GateThetaVega},
		{"RSI not oversold", func(s *domain.MarketSnapshot) { s.RSI = 30 }, GateRSI},
		{"price below MA", func(s *domain.MarketSnapshot) { s.MA = 101 }, GateMA},
		{"VIX at ceiling", func(s *domain.MarketSnapshot) { s.VIX = 20 }, GateVIX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := longSnapshot()
			tt.mutate(&snap)
			d := Evaluate(snap, testThresholds())
			assert.Equal(t, domain.SignalNone, d.Signal)
			assert.Equal(t, tt.wantReject, d.LongRejectedBy)
		})
	}
}

// A failing theta-vega gate collapses to NONE even when the opposite side's
// delta-gamma condition would hold.
func TestEvaluateThetaVegaNeverFlipsSide(t *testing.T) {
	snap := longSnapshot()
	snap.Put.Delta = -0.6
	snap.Call.Vega = 0.01
	snap.Put.Vega = 0.01

	d := Evaluate(snap, testThresholds())
	assert.Equal(t, domain.SignalNone, d.Signal)
	assert.Equal(t, GateThetaVega, d.LongRejectedBy)
	assert.Equal(t, GateThetaVega, d.ShortRejectedBy)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	snap := longSnapshot()
	first := Evaluate(snap, testThresholds())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(snap, testThresholds()))
	}
}

// With every threshold wide open the decision is driven by price against MA
// and never reports both sides.
func TestEvaluatePermissiveThresholds(t *testing.T) {
	open := domain.SignalThresholds{
		DeltaLong: -10, GammaLong: -10, DeltaShort: -10, GammaShort: -10,
		Theta: -10, Vega: -10, RSIOversold: 101, RSIOverbought: -1, VIXCeiling: 1000,
	}

	for _, price := range []float64{90, 99.99, 100, 100.01, 110} {
		snap := longSnapshot()
		snap.Price = price
		snap.MA = 100
		d := Evaluate(snap, open)

		switch {
		case price > snap.MA:
			assert.Equal(t, domain.SignalLong, d.Signal, "price %v", price)
		case price < snap.MA:
			assert.Equal(t, domain.SignalShort, d.Signal, "price %v", price)
		default:
			assert.Equal(t, domain.SignalNone, d.Signal, "price %v", price)
		}
		assert.False(t, d.LongRejectedBy == "" && d.ShortRejectedBy == "", "both sides passed at %v", price)
	}
}

func TestEvaluatorImplementsPort(t *testing.T) {
	e, err := New(testThresholds())
	require.NoError(t, err)
	assert.Equal(t, domain.SignalLong, e.Evaluate(longSnapshot()).Signal)

	_, err = New(domain.SignalThresholds{})
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)
}

func TestConditions(t *testing.T) {
	fields := Conditions(Evaluate(shortSnapshot(), testThresholds()))
	assert.Equal(t, "SHORT", fields["signal"])
	assert.Equal(t, GateDeltaGamma, fields["longRejectedBy"])
	assert.Equal(t, 75.0, fields["rsi"])
}
