package ports

import "niftyGreeksBot/internal/domain"

// SignalEvaluator turns one snapshot into a trading decision.
// Implementations must be pure: the same snapshot always yields the same decision.
type SignalEvaluator interface {
	Evaluate(snapshot domain.MarketSnapshot) domain.SignalDecision
}
