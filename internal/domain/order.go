package domain

import "time"

// OrderIntent is handed to the order executor on every live transition.
// The engine does not wait for fills.
type OrderIntent struct {
	ClientOrderID string      `json:"client_order_id"`
	PositionID    int64       `json:"position_id"`
	Symbol        string      `json:"symbol"`
	Action        OrderAction `json:"action"`
	Side          Side        `json:"side"`     // Side of the position being opened or closed
	Quantity      int         `json:"quantity"` // Lot size
	Price         float64     `json:"price"`    // Underlying price at decision time
	Reason        string      `json:"reason"`   // ENTRY or the close reason
	Timestamp     time.Time   `json:"timestamp"`
}

// IntentReasonEntry marks an intent that opens a position.
const IntentReasonEntry = "ENTRY"
