package ports

import (
	"context"
	"time"

	"niftyGreeksBot/internal/domain"
)

// SnapshotFeed delivers live snapshots one at a time in non-decreasing time order.
type SnapshotFeed interface {
	// Next blocks until the next snapshot is available.
	// It returns ErrMalformedSnapshot for a bad record (the feed moves past it),
	// ErrFeedExhausted when no more data will arrive, and ErrFeedUnavailable
	// when the upstream source cannot be reached.
	Next(ctx context.Context) (domain.MarketSnapshot, error)
}

// SnapshotSource loads historical snapshots for a backtest.
type SnapshotSource interface {
	// LoadSnapshots returns the snapshots for symbol within [from, to] sorted by time.
	// A zero from or to leaves that side unbounded.
	LoadSnapshots(ctx context.Context, symbol string, from, to time.Time) ([]domain.MarketSnapshot, error)
}
