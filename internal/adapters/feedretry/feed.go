// Package feedretry adds bounded retries with exponential backoff to a snapshot feed.
package feedretry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// Config holds the retry policy.
type Config struct {
	MaxAttempts int           // Total attempts per Next call, including the first
	Min         time.Duration // First delay
	Max         time.Duration // Delay cap
	Factor      float64       // Growth per attempt, defaults to 2
	Jitter      bool
}

// Feed wraps a ports.SnapshotFeed and retries transient failures.
type Feed struct {
	inner  ports.SnapshotFeed
	cfg    Config
	logger ports.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retrying feed.
func New(inner ports.SnapshotFeed, cfg Config, logger ports.Logger) (*Feed, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner feed is required", ports.ErrConfigurationError)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: max attempts must be positive", ports.ErrConfigurationError)
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 2
	}
	return &Feed{inner: inner, cfg: cfg, logger: logger, sleep: sleepCtx}, nil
}

// Next returns the next snapshot from the inner feed. Malformed, out-of-order,
// exhausted and cancelled results are passed through untouched; other errors
// are retried and, once attempts run out, reported as ErrFeedUnavailable.
func (f *Feed) Next(ctx context.Context) (domain.MarketSnapshot, error) {
	b := &backoff.Backoff{
		Min:    f.cfg.Min,
		Max:    f.cfg.Max,
		Factor: f.cfg.Factor,
		Jitter: f.cfg.Jitter,
	}
	for attempt := 1; ; attempt++ {
		snap, err := f.inner.Next(ctx)
		if err == nil || !transient(err) {
			return snap, err
		}
		if attempt >= f.cfg.MaxAttempts {
			return domain.MarketSnapshot{}, fmt.Errorf("%w: giving up after %d attempts: %w", ports.ErrFeedUnavailable, attempt, err)
		}

		delay := b.Duration()
		f.logger.Warn(ctx, "Snapshot feed failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		if err := f.sleep(ctx, delay); err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		}
	}
}

func transient(err error) bool {
	switch {
	case errors.Is(err, ports.ErrMalformedSnapshot),
		errors.Is(err, ports.ErrOutOfOrder),
		errors.Is(err, ports.ErrFeedExhausted),
		errors.Is(err, ports.ErrContextCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
