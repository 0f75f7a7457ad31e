package domain

import "time"

// TradeRecord is the append-only record of one closed position.
type TradeRecord struct {
	ID          int64         `json:"id"`          // Storage identifier, 0 for in-memory records
	PositionID  int64         `json:"position_id"` // Identifier of the position this trade closed
	Symbol      string        `json:"symbol"`
	Side        Side          `json:"side"`
	Quantity    int           `json:"quantity"`
	EntryPrice  float64       `json:"entry_price"`
	ExitPrice   float64       `json:"exit_price"`
	EntryTime   time.Time     `json:"entry_time"`
	ExitTime    time.Time     `json:"exit_time"`
	CloseReason CloseReason   `json:"close_reason"`
	PNL         float64       `json:"pnl"`     // Gross realized P&L
	Costs       float64       `json:"costs"`   // Entry plus exit transaction costs
	NetPNL      float64       `json:"net_pnl"` // PNL minus Costs
	Holding     time.Duration `json:"holding"`
}

// NewTradeRecord builds the record for a closed position. costPerOrder is charged
// on both the entry and the exit order.
func NewTradeRecord(pos Position, costPerOrder float64) TradeRecord {
	costs := 2 * costPerOrder
	return TradeRecord{
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Quantity:    pos.Quantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   pos.ExitPrice,
		EntryTime:   pos.EntryTime,
		ExitTime:    pos.ExitTime,
		CloseReason: pos.CloseReason,
		PNL:         pos.PNL,
		Costs:       costs,
		NetPNL:      pos.PNL - costs,
		Holding:     pos.ExitTime.Sub(pos.EntryTime),
	}
}

// IsWin reports whether the trade made a strictly positive gross profit.
func (t TradeRecord) IsWin() bool {
	return t.PNL > 0
}
