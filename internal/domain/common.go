package domain

// Side is the direction of a position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT. Any other value yields 0.
func (s Side) Sign() float64 {
	switch s {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// Signal is the outcome of the filter pipeline for one snapshot.
type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalNone  Signal = "NONE"
)

// Side converts an actionable signal to a position side. ok is false for NONE.
func (s Signal) Side() (side Side, ok bool) {
	switch s {
	case SignalLong:
		return Long, true
	case SignalShort:
		return Short, true
	default:
		return "", false
	}
}

// OrderAction represents the side of an order intent (BUY or SELL).
type OrderAction string

const (
	Buy  OrderAction = "BUY"
	Sell OrderAction = "SELL"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonSignalReversal CloseReason = "SIGNAL_REVERSAL"
	CloseReasonStopLoss       CloseReason = "STOP_LOSS"
	CloseReasonTakeProfit     CloseReason = "TAKE_PROFIT"
	CloseReasonTimeExit       CloseReason = "TIME_EXIT" // Session end or end of backtest data
	CloseReasonManual         CloseReason = "MANUAL"
)

// Valid reports whether r is one of the known close reasons.
func (r CloseReason) Valid() bool {
	switch r {
	case CloseReasonSignalReversal, CloseReasonStopLoss, CloseReasonTakeProfit,
		CloseReasonTimeExit, CloseReasonManual:
		return true
	}
	return false
}

// RiskAction is the verdict of the risk manager for an open position.
type RiskAction string

const (
	RiskHold       RiskAction = "HOLD"
	RiskStopLoss   RiskAction = "STOP_LOSS"
	RiskTakeProfit RiskAction = "TAKE_PROFIT"
)

// CloseReason maps an exit verdict to the matching close reason. ok is false for HOLD.
func (a RiskAction) CloseReason() (CloseReason, bool) {
	switch a {
	case RiskStopLoss:
		return CloseReasonStopLoss, true
	case RiskTakeProfit:
		return CloseReasonTakeProfit, true
	default:
		return "", false
	}
}
