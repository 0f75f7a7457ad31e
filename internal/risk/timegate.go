package risk

import (
	"time"

	"niftyGreeksBot/internal/domain"
)

// TimeGate restricts entries to the trading window and marks the session end.
type TimeGate struct {
	window domain.TradingWindow
}

// NewTimeGate creates a gate for the given window.
func NewTimeGate(window domain.TradingWindow) TimeGate {
	return TimeGate{window: window}
}

// PermitsEntry reports whether ts falls inside [start, end) in the window location.
func (g TimeGate) PermitsEntry(ts time.Time) bool {
	local := ts.In(g.window.Loc())
	minute := local.Hour()*60 + local.Minute()
	if minute < g.window.Start.Minutes() {
		return false
	}
	// Seconds past the end minute still count as outside.
	return minute < g.window.End.Minutes()
}

// SessionEnd returns the end of the trading window on the calendar day of ts.
func (g TimeGate) SessionEnd(ts time.Time) time.Time {
	return g.window.End.On(ts, g.window.Loc())
}

// ReachedSessionEnd reports whether now is at or after the session end of the
// day the position was entered.
func (g TimeGate) ReachedSessionEnd(entry, now time.Time) bool {
	return !now.Before(g.SessionEnd(entry))
}
