package domain

import "time"

// Bar represents a single OHLCV candle of the underlying index.
type Bar struct {
	Time   time.Time // Start time of the interval
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	VIX    float64 // Volatility index at bar close, 0 when the source has no VIX column
}
