package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"niftyGreeksBot/config"
	"niftyGreeksBot/internal/adapters/clickhouse"
	"niftyGreeksBot/internal/adapters/csvfeed"
	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
	"niftyGreeksBot/internal/strategy/greeks"
	"niftyGreeksBot/internal/strategy/indicators"
)

// HistoryOptions selects where backtest snapshots come from.
type HistoryOptions struct {
	// BarsPattern, when set, builds snapshots from OHLC bar files instead of
	// reading snapshot rows.
	BarsPattern  string
	DataPattern  string // Snapshot CSV pattern; defaults to the configured feed path
	Source       string // csv or clickhouse; defaults to the configured feed source
	From, To     time.Time
	BaseVIX      float64
	RSISmoothing indicators.RSISmoothing
	MAType       indicators.MovingAverageType
}

// LoadHistory returns the snapshots for the configured symbol within [From, To].
func LoadHistory(ctx context.Context, cfg *config.Config, logger ports.Logger, opts HistoryOptions) ([]domain.MarketSnapshot, error) {
	if opts.BarsPattern != "" {
		return snapshotsFromBars(ctx, cfg, logger, opts)
	}

	source := opts.Source
	if source == "" {
		source = cfg.FeedSource
	}
	switch source {
	case config.FeedSourceClickHouse:
		src, err := clickhouse.Open(ctx, clickhouse.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
			Table:    cfg.ClickHouseTable,
		}, logger)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.LoadSnapshots(ctx, cfg.Symbol, opts.From, opts.To)
	case config.FeedSourceCSV:
		pattern := opts.DataPattern
		if pattern == "" {
			pattern = cfg.FeedPath
		}
		return csvfeed.NewSource(pattern, cfg.Location, logger).LoadSnapshots(ctx, cfg.Symbol, opts.From, opts.To)
	default:
		return nil, fmt.Errorf("%w: unknown snapshot source %q", ports.ErrInvalidRequest, source)
	}
}

func snapshotsFromBars(ctx context.Context, cfg *config.Config, logger ports.Logger, opts HistoryOptions) ([]domain.MarketSnapshot, error) {
	bars, err := csvfeed.ReadBarFiles(opts.BarsPattern, cfg.Location)
	if err != nil {
		return nil, err
	}
	baseVIX := opts.BaseVIX
	if baseVIX <= 0 {
		baseVIX = cfg.VIXThreshold * 0.75
	}
	snaps, err := greeks.BuildSnapshots(ctx, bars, greeks.Config{
		Symbol:       cfg.Symbol,
		RSIPeriod:    cfg.RSIPeriod,
		RSISmoothing: opts.RSISmoothing,
		MAPeriod:     cfg.MAPeriod,
		MAType:       opts.MAType,
		BaseVIX:      baseVIX,
		Location:     cfg.Location,
	})
	if err != nil {
		return nil, err
	}

	out := snaps[:0]
	for _, s := range snaps {
		if !opts.From.IsZero() && s.Timestamp.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && s.Timestamp.After(opts.To) {
			continue
		}
		out = append(out, s)
	}
	logger.Info(ctx, "Built snapshots from bars", map[string]interface{}{
		"bars":      len(bars),
		"snapshots": len(out),
		"baseVIX":   baseVIX,
	})
	return out, nil
}

// ParseBound parses a --from/--to value: an RFC3339 timestamp or a YYYY-MM-DD
// date in loc. A date used as an upper bound covers the whole day.
func ParseBound(value string, loc *time.Location, upper bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is neither RFC3339 nor YYYY-MM-DD", ports.ErrInvalidRequest, value)
	}
	if upper {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return d, nil
}
