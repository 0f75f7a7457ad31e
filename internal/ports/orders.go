package ports

import (
	"context"

	"niftyGreeksBot/internal/domain"
)

// OrderExecutor receives order intents produced by live transitions.
// The engine does not track fills; a failed submission is logged by the driver.
type OrderExecutor interface {
	Submit(ctx context.Context, intent domain.OrderIntent) error
}

// EventPublisher fans lifecycle events out to observers such as dashboards.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
}
