package domain

import "time"

// Position represents the single intraday position held by the engine.
type Position struct {
	ID          int64          // Sequential identifier assigned by the state machine
	Symbol      string         // Underlying symbol (e.g., "NIFTY")
	Side        Side           // LONG or SHORT, fixed at entry
	EntryPrice  float64        // Underlying price at entry
	EntryTime   time.Time      // Snapshot timestamp that opened the position
	Quantity    int            // Lot size, fixed at entry
	Status      PositionStatus // Current status (OPEN, CLOSED)
	CloseReason CloseReason    // Empty while open
	ExitPrice   float64        // Zero while open
	ExitTime    time.Time      // Zero value while open
	PNL         float64        // Realized profit and loss, set once on close
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// UnrealizedPNL marks the position to price: (price - entry) * sign * quantity.
func (p *Position) UnrealizedPNL(price float64) float64 {
	return (price - p.EntryPrice) * p.Side.Sign() * float64(p.Quantity)
}

// ReturnPct is the signed fractional move from entry, positive when in profit.
func (p *Position) ReturnPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * p.Side.Sign()
}
