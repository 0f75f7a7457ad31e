package domain

import "time"

// EventType identifies a position lifecycle transition.
type EventType string

const (
	EventOpen  EventType = "OPEN"
	EventClose EventType = "CLOSE"
)

// LifecycleEvent is emitted by the state machine on every transition.
// Position is a copy taken after the transition was applied.
type LifecycleEvent struct {
	Type      EventType   `json:"type"`
	Position  Position    `json:"position"`
	Reason    CloseReason `json:"reason,omitempty"` // Set for CLOSE events only
	Signal    Signal      `json:"signal"`           // Decision on the snapshot that drove the event
	Price     float64     `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
}

// OrderAction returns the order side needed to carry out the transition.
func (e LifecycleEvent) OrderAction() OrderAction {
	buying := e.Position.Side == Long
	if e.Type == EventClose {
		buying = !buying
	}
	if buying {
		return Buy
	}
	return Sell
}
