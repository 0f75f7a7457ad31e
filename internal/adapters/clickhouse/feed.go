package clickhouse

import (
	"context"
	"fmt"
	"time"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// PollingFeed turns a snapshot source into a live ports.SnapshotFeed by
// querying it for rows newer than the last delivered snapshot.
type PollingFeed struct {
	source   ports.SnapshotSource
	symbol   string
	interval time.Duration
	logger   ports.Logger

	buffer []domain.MarketSnapshot
	last   time.Time
}

// NewPollingFeed creates a feed that queries source every interval while no new rows exist.
// Rows at or before since are never delivered.
func NewPollingFeed(source ports.SnapshotSource, symbol string, since time.Time, interval time.Duration, logger ports.Logger) (*PollingFeed, error) {
	if source == nil || logger == nil {
		return nil, fmt.Errorf("%w: polling feed needs a source and a logger", ports.ErrConfigurationError)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: polling interval must be positive", ports.ErrConfigurationError)
	}
	return &PollingFeed{source: source, symbol: symbol, interval: interval, logger: logger, last: since}, nil
}

// Next returns the next unseen snapshot, blocking until one is available.
func (f *PollingFeed) Next(ctx context.Context) (domain.MarketSnapshot, error) {
	for len(f.buffer) == 0 {
		from := time.Time{}
		if !f.last.IsZero() {
			from = f.last.Add(time.Nanosecond)
		}
		snaps, err := f.source.LoadSnapshots(ctx, f.symbol, from, time.Time{})
		if err != nil {
			return domain.MarketSnapshot{}, err
		}
		if len(snaps) > 0 {
			f.buffer = snaps
			f.logger.Debug(ctx, "Fetched new snapshots", map[string]interface{}{"symbol": f.symbol, "count": len(snaps)})
			break
		}

		select {
		case <-ctx.Done():
			return domain.MarketSnapshot{}, ctx.Err()
		case <-time.After(f.interval):
		}
	}

	snap := f.buffer[0]
	f.buffer = f.buffer[1:]
	f.last = snap.Timestamp
	return snap, nil
}
