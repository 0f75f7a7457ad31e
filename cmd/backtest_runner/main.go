package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"niftyGreeksBot/config"
	"niftyGreeksBot/internal/adapters/logger"
	"niftyGreeksBot/internal/adapters/sqlite"
	"niftyGreeksBot/internal/app"
	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
	"niftyGreeksBot/internal/strategy/backtesting"
	"niftyGreeksBot/internal/strategy/indicators"
	"niftyGreeksBot/internal/strategy/optimization"
	"niftyGreeksBot/internal/utils"
)

// runNamespace scopes the deterministic backtest run IDs.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("niftyGreeksBot/backtest-run"))

var (
	dataPattern  string
	barsPattern  string
	source       string
	fromFlag     string
	toFlag       string
	outDir       string
	sweep        bool
	persist      bool
	baseVIX      float64
	rsiSmoothing string
	maType       string
	topN         int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "backtest_runner",
		Short: "Replay historical snapshots through the strategy",
		Long: `backtest_runner replays NIFTY option-Greek snapshots through the position
state machine and writes trades, the equity curve and a performance summary.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&dataPattern, "data", "", "Snapshot CSV file or glob (defaults to FEED_PATH)")
	rootCmd.Flags().StringVar(&barsPattern, "bars", "", "Build snapshots from OHLC bar CSV files instead")
	rootCmd.Flags().StringVar(&source, "source", "", "Snapshot source: csv or clickhouse (defaults to FEED_SOURCE)")
	rootCmd.Flags().StringVar(&fromFlag, "from", "", "First day or RFC3339 time to include")
	rootCmd.Flags().StringVar(&toFlag, "to", "", "Last day or RFC3339 time to include")
	rootCmd.Flags().StringVarP(&outDir, "out", "o", "results", "Directory for trades.csv, equity.csv and summary.json")
	rootCmd.Flags().BoolVar(&sweep, "sweep", false, "Run a stop-loss/take-profit/RSI parameter sweep")
	rootCmd.Flags().BoolVar(&persist, "persist", false, "Store the run in the SQLite database")
	rootCmd.Flags().Float64Var(&baseVIX, "base-vix", 0, "VIX for bars without one (defaults to 75% of VIX_THRESHOLD)")
	rootCmd.Flags().StringVar(&rsiSmoothing, "rsi-smoothing", string(indicators.SimpleSmoothing), "RSI smoothing for --bars: simple or wilder")
	rootCmd.Flags().StringVar(&maType, "ma-type", string(indicators.SimpleMovingAverage), "Moving average for --bars: SMA or EMA")
	rootCmd.Flags().IntVar(&topN, "top", 10, "Sweep results to print")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
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

	// 2. Load snapshots
	snaps, err := app.LoadHistory(ctx, cfg, appLogger, app.HistoryOptions{
		BarsPattern:  barsPattern,
		DataPattern:  dataPattern,
		Source:       source,
		From:         from,
		To:           to,
		BaseVIX:      baseVIX,
		RSISmoothing: indicators.RSISmoothing(rsiSmoothing),
		MAType:       indicators.MovingAverageType(maType),
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load snapshots")
		return err
	}
	appLogger.Info(ctx, "Loaded snapshots", map[string]interface{}{"count": len(snaps), "symbol": cfg.Symbol})

	if sweep {
		return runSweep(ctx, cfg, appLogger, snaps)
	}

	// 3. Run the backtest
	policy := cfg.Policy()
	result, err := backtesting.Backtest(ctx, snaps, backtesting.BacktestConfig{
		Policy:       policy,
		InitialFunds: cfg.InitialCapital,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Backtest error")
		return err
	}

	s := result.Summary
	appLogger.Info(ctx, "Backtest result", map[string]interface{}{
		"trades":        s.TotalTrades,
		"winRate":       s.WinRate * 100,
		"netPNL":        s.NetPNL,
		"profitFactor":  formatProfitFactor(s.ProfitFactor),
		"maxDrawdown":   s.MaxDrawdown,
		"maxDrawdownPc": s.MaxDrawdownPct * 100,
		"returnPct":     s.ReturnPct * 100,
		"sharpe":        s.SharpeRatio,
		"exitReasons":   s.ExitReasons,
	})

	// 4. Save result files
	if err := utils.SaveResults(outDir, result.Trades, result.EquityCurve, s); err != nil {
		appLogger.Error(ctx, err, "Failed to save results", map[string]interface{}{"dir": outDir})
		return err
	}
	appLogger.Info(ctx, "Results saved", map[string]interface{}{"dir": outDir})

	// 5. Optionally persist the run
	if persist {
		if err := persistRun(ctx, cfg, appLogger, policy, result); err != nil {
			return err
		}
	}
	return nil
}

func persistRun(ctx context.Context, cfg *config.Config, appLogger ports.Logger, policy domain.Policy, result *backtesting.BacktestResult) error {
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return err
	}
	defer repo.Close()

	run := &domain.BacktestRun{
		ID:        runID(policy, result),
		Symbol:    policy.Symbol,
		CreatedAt: time.Now().UTC(),
		DataFrom:  result.From,
		DataTo:    result.To,
		Snapshots: result.Snapshots,
		Policy:    policy,
		Summary:   result.Summary,
		Trades:    result.Trades,
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		appLogger.Error(ctx, err, "Failed to persist backtest run", map[string]interface{}{"runID": run.ID})
		return err
	}
	appLogger.Info(ctx, "Backtest run stored", map[string]interface{}{"runID": run.ID, "db": cfg.DBPath})
	return nil
}

// runID is stable for the same policy over the same data, so re-running a
// backtest replaces the stored run instead of adding a copy.
func runID(policy domain.Policy, result *backtesting.BacktestResult) string {
	key := fmt.Sprintf("%+v|%s|%s|%d", policy,
		result.From.UTC().Format(time.RFC3339Nano), result.To.UTC().Format(time.RFC3339Nano), result.Snapshots)
	return uuid.NewSHA1(runNamespace, []byte(key)).String()
}

func runSweep(ctx context.Context, cfg *config.Config, appLogger ports.Logger, snaps []domain.MarketSnapshot) error {
	optimizer, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: []optimization.ParameterRange{
			{Name: optimization.ParamStopLoss, Min: 0.005, Max: 0.02, Step: 0.005},
			{Name: optimization.ParamTakeProfit, Min: 0.01, Max: 0.04, Step: 0.01},
			{Name: optimization.ParamRSIOversold, Min: 25, Max: 35, Step: 5, IsInt: true},
		},
		BasePolicy:   cfg.Policy(),
		InitialFunds: cfg.InitialCapital,
	})
	if err != nil {
		return err
	}

	results, err := optimizer.Optimize(ctx, snaps)
	if err != nil {
		appLogger.Error(ctx, err, "Parameter sweep failed")
		return err
	}
	appLogger.Info(ctx, "Parameter sweep finished", map[string]interface{}{"combinations": len(results)})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Rank\tParameters\tTrades\tWinRate\tNetPNL\tPF\tMaxDD%\tScore\t")
	for i, r := range results {
		if i >= topN {
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%.2f\t%s\t%.2f\t%.3f\t\n",
			i+1,
			optimization.FormatParameters(r.Parameters),
			r.Summary.TotalTrades,
			r.Summary.WinRate*100,
			r.Summary.NetPNL,
			formatProfitFactor(r.Summary.ProfitFactor),
			r.Summary.MaxDrawdownPct*100,
			r.Score,
		)
	}
	return w.Flush()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
