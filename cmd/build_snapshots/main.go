package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"niftyGreeksBot/config"
	"niftyGreeksBot/internal/adapters/csvfeed"
	"niftyGreeksBot/internal/adapters/logger"
	"niftyGreeksBot/internal/app"
	"niftyGreeksBot/internal/strategy/indicators"
)

var (
	barsPattern  string
	source       string
	fromFlag     string
	toFlag       string
	outFile      string
	baseVIX      float64
	rsiSmoothing string
	maType       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "build_snapshots",
		Short: "Write a snapshot CSV for backtests and the replay feed",
		Long: `build_snapshots derives option-Greek snapshots from OHLC bar files, or exports
stored snapshots from ClickHouse, and writes them in the snapshot CSV layout.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&barsPattern, "bars", "", "OHLC bar CSV file or glob")
	rootCmd.Flags().StringVar(&source, "source", "", "Export from this snapshot source instead of bars: csv or clickhouse")
	rootCmd.Flags().StringVar(&fromFlag, "from", "", "First day or RFC3339 time to include")
	rootCmd.Flags().StringVar(&toFlag, "to", "", "Last day or RFC3339 time to include")
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "data/snapshots.csv", "Output snapshot CSV")
	rootCmd.Flags().Float64Var(&baseVIX, "base-vix", 0, "VIX for bars without one (defaults to 75% of VIX_THRESHOLD)")
	rootCmd.Flags().StringVar(&rsiSmoothing, "rsi-smoothing", string(indicators.SimpleSmoothing), "RSI smoothing: simple or wilder")
	rootCmd.Flags().StringVar(&maType, "ma-type", string(indicators.SimpleMovingAverage), "Moving average: SMA or EMA")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if barsPattern == "" && source == "" {
		return fmt.Errorf("one of --bars or --source is required")
	}
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.LogLevel, cfg.LogFormat)
	defer appLogger.Sync()

	from, err := app.ParseBound(fromFlag, cfg.Location, false)
	if err != nil {
		return err
	}
	to, err := app.ParseBound(toFlag, cfg.Location, true)
	if err != nil {
		return err
	}

	// 3. Build or fetch snapshots
	snaps, err := app.LoadHistory(ctx, cfg, appLogger, app.HistoryOptions{
		BarsPattern:  barsPattern,
		Source:       source,
		From:         from,
		To:           to,
		BaseVIX:      baseVIX,
		RSISmoothing: indicators.RSISmoothing(rsiSmoothing),
		MAType:       indicators.MovingAverageType(maType),
	})
	if err != nil {
		appLogger.Error(ctx, err, "Error loading snapshots")
		return err
	}
	appLogger.Info(ctx, "Snapshots ready", map[string]interface{}{"count": len(snaps)})

	// 4. Write CSV
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	if err := csvfeed.WriteSnapshots(f, snaps); err != nil {
		f.Close()
		appLogger.Error(ctx, err, "Error writing CSV")
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": outFile})
	return nil
}
