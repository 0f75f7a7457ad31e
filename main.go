package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"

	"niftyGreeksBot/config"
	"niftyGreeksBot/internal/adapters/clickhouse"
	"niftyGreeksBot/internal/adapters/csvfeed"
	"niftyGreeksBot/internal/adapters/feedretry"
	"niftyGreeksBot/internal/adapters/logger"
	"niftyGreeksBot/internal/adapters/paper"
	"niftyGreeksBot/internal/adapters/sqlite"
	"niftyGreeksBot/internal/adapters/wshub"
	"niftyGreeksBot/internal/app"
	"niftyGreeksBot/internal/ports"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.LogLevel, cfg.LogFormat)
	defer appLogger.Sync()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	if total, err := repo.GetTotalProfit(ctx); err == nil {
		appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"realizedNetPNL": total})
	}

	// 4. Initialize Snapshot Feed
	rawFeed, closeFeed, err := openFeed(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize snapshot feed", map[string]interface{}{"source": cfg.FeedSource})
		log.Fatalf("FATAL: Failed to initialize snapshot feed: %v", err)
	}
	defer closeFeed()

	feed, err := feedretry.New(rawFeed, feedretry.Config{
		MaxAttempts: cfg.FeedMaxAttempts,
		Min:         cfg.FeedRetryMin,
		Max:         cfg.FeedRetryMax,
		Jitter:      true,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize feed retry policy")
		log.Fatalf("FATAL: Failed to initialize feed retry policy: %v", err)
	}
	appLogger.Info(ctx, "Snapshot feed initialized", map[string]interface{}{"source": cfg.FeedSource})

	// 5. Initialize Order Executor
	executor := paper.NewExecutor(repo, appLogger, paper.DefaultTickSize)

	// 6. Initialize Event Hub (optional)
	var publisher ports.EventPublisher
	if cfg.EventsAddr != "" {
		hub := wshub.NewHub(appLogger)
		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		go func() {
			if err := hub.ListenAndServe(hubCtx, cfg.EventsAddr); err != nil {
				appLogger.Error(ctx, err, "Event hub stopped", map[string]interface{}{"addr": cfg.EventsAddr})
			}
		}()
		publisher = hub
	}

	// 7. Initialize Live Trader
	trader, err := app.NewLiveTrader(cfg, appLogger, feed, executor, repo, repo, publisher)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize live trader")
		log.Fatalf("FATAL: Failed to initialize live trader: %v", err)
	}

	// 8. Start the Trader
	if err := trader.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Live trader exited with error")
		log.Fatalf("FATAL: Live trader exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}

// openFeed builds the configured live feed and a function releasing it.
func openFeed(ctx context.Context, cfg *config.Config, appLogger ports.Logger) (ports.SnapshotFeed, func(), error) {
	switch cfg.FeedSource {
	case config.FeedSourceClickHouse:
		src, err := clickhouse.Open(ctx, clickhouse.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
			Table:    cfg.ClickHouseTable,
		}, appLogger)
		if err != nil {
			return nil, nil, err
		}
		feed, err := clickhouse.NewPollingFeed(src, cfg.Symbol, time.Now(), cfg.PollInterval, appLogger)
		if err != nil {
			src.Close()
			return nil, nil, err
		}
		return feed, func() { src.Close() }, nil
	default:
		replay, err := csvfeed.NewReplay(cfg.FeedPath, cfg.Symbol, cfg.Location)
		if err != nil {
			return nil, nil, err
		}
		return replay, func() { replay.Close() }, nil
	}
}
