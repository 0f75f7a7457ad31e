// Package paper provides an order executor that records intents instead of
// routing them to a broker.
package paper

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// DefaultTickSize is the NSE index derivative tick.
var DefaultTickSize = decimal.RequireFromString("0.05")

// Executor implements ports.OrderExecutor by journaling each intent at a
// tick-aligned price.
type Executor struct {
	journal  ports.OrderJournal
	logger   ports.Logger
	tickSize decimal.Decimal
}

// NewExecutor creates a paper executor. A non-positive tick uses DefaultTickSize.
func NewExecutor(journal ports.OrderJournal, logger ports.Logger, tickSize decimal.Decimal) *Executor {
	if !tickSize.IsPositive() {
		tickSize = DefaultTickSize
	}
	return &Executor{journal: journal, logger: logger, tickSize: tickSize}
}

// RoundToTick rounds price to the nearest multiple of tick.
func RoundToTick(price float64, tick decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(price).Div(tick).Round(0).Mul(tick)
}

// Submit journals the intent.
func (e *Executor) Submit(ctx context.Context, intent domain.OrderIntent) error {
	if intent.ClientOrderID == "" || intent.Quantity <= 0 {
		return fmt.Errorf("%w: %w: intent needs a client id and a positive quantity", ports.ErrOrderSubmitFailed, ports.ErrInvalidRequest)
	}
	price := RoundToTick(intent.Price, e.tickSize)
	intent.Price = price.InexactFloat64()

	if err := e.journal.SaveOrderIntent(ctx, intent); err != nil {
		return fmt.Errorf("%w: %s: %w", ports.ErrOrderSubmitFailed, intent.ClientOrderID, err)
	}
	e.logger.Info(ctx, "Paper order placed", map[string]interface{}{
		"clientOrderID": intent.ClientOrderID,
		"positionID":    intent.PositionID,
		"action":        string(intent.Action),
		"quantity":      intent.Quantity,
		"price":         price.StringFixed(2),
		"reason":        intent.Reason,
	})
	return nil
}
