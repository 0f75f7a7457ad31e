package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMalformedSnapshot is returned when a snapshot has a missing or non-finite field.
var ErrMalformedSnapshot = errors.New("malformed market snapshot")

// Greeks holds the option sensitivities of one contract leg.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// MarketSnapshot is the immutable input record for one evaluation step.
type MarketSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Call      Greeks    `json:"call"`
	Put       Greeks    `json:"put"`
	RSI       float64   `json:"rsi"`
	MA        float64   `json:"ma"`
	VIX       float64   `json:"vix"`
}

// Validate checks that every numeric field is present and finite.
// A NaN field is treated as missing.
func (s MarketSnapshot) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedSnapshot)
	}
	var bad []string
	for _, f := range s.fields() {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			bad = append(bad, f.name)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: non-finite %s at %s", ErrMalformedSnapshot,
			strings.Join(bad, ", "), s.Timestamp.Format(time.RFC3339))
	}
	if s.Price <= 0 || s.MA <= 0 || s.VIX < 0 {
		return fmt.Errorf("%w: price=%v ma=%v vix=%v at %s", ErrMalformedSnapshot,
			s.Price, s.MA, s.VIX, s.Timestamp.Format(time.RFC3339))
	}
	return nil
}

type namedValue struct {
	name  string
	value float64
}

func (s MarketSnapshot) fields() []namedValue {
	return []namedValue{
		{"price", s.Price},
		{"call_delta", s.Call.Delta}, {"call_gamma", s.Call.Gamma},
		{"call_theta", s.Call.Theta}, {"call_vega", s.Call.Vega},
		{"put_delta", s.Put.Delta}, {"put_gamma", s.Put.Gamma},
		{"put_theta", s.Put.Theta}, {"put_vega", s.Put.Vega},
		{"rsi", s.RSI}, {"ma", s.MA}, {"vix", s.VIX},
	}
}

// SnapshotFields is the wire form of a snapshot where any field may be absent.
// Adapters fill it from CSV rows or nullable database columns and call Build.
type SnapshotFields struct {
	Timestamp *time.Time
	Symbol    string

	Price *float64

	CallDelta, CallGamma, CallTheta, CallVega *float64
	PutDelta, PutGamma, PutTheta, PutVega     *float64

	RSI, MA, VIX *float64
}

// Build converts the wire form into a validated MarketSnapshot.
// Every missing field is named in the returned error.
func (f SnapshotFields) Build() (MarketSnapshot, error) {
	var missing []string
	get := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return math.NaN()
		}
		return *v
	}

	snap := MarketSnapshot{
		Symbol: f.Symbol,
		Price:  get("price", f.Price),
		Call: Greeks{
			Delta: get("call_delta", f.CallDelta),
			Gamma: get("call_gamma", f.CallGamma),
			Theta: get("call_theta", f.CallTheta),
			Vega:  get("call_vega", f.CallVega),
		},
		Put: Greeks{
			Delta: get("put_delta", f.PutDelta),
			Gamma: get("put_gamma", f.PutGamma),
			Theta: get("put_theta", f.PutTheta),
			Vega:  get("put_vega", f.PutVega),
		},
		RSI: get("rsi", f.RSI),
		MA:  get("ma", f.MA),
		VIX: get("vix", f.VIX),
	}
	if f.Timestamp == nil || f.Timestamp.IsZero() {
		missing = append([]string{"timestamp"}, missing...)
	} else {
		snap.Timestamp = *f.Timestamp
	}
	if len(missing) > 0 {
		return MarketSnapshot{}, fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, strings.Join(missing, ", "))
	}
	if err := snap.Validate(); err != nil {
		return MarketSnapshot{}, err
	}
	return snap, nil
}

// SignalDecision is the result of evaluating one snapshot.
type SignalDecision struct {
	Signal   Signal
	Snapshot MarketSnapshot
	// LongRejectedBy and ShortRejectedBy name the first gate that failed for each
	// side, empty when the side passed every gate.
	LongRejectedBy  string
	ShortRejectedBy string
}

// Ambiguous reports whether both sides passed every gate.
func (d SignalDecision) Ambiguous() bool {
	return d.Signal == SignalNone && d.LongRejectedBy == "" && d.ShortRejectedBy == ""
}
