package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"niftyGreeksBot/config"
	"niftyGreeksBot/internal/adapters/logger"
	"niftyGreeksBot/internal/adapters/sqlite"
	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/strategy/analytics"
)

var (
	limit int
	runID string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "analyze_backtests",
		Short: "Compare stored backtest runs",
		RunE:  listRuns,
	}
	rootCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list, newest first")

	tradesCmd := &cobra.Command{
		Use:   "trades <run-id>",
		Short: "Show the trades and daily P&L of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID = args[0]
			return showTrades(cmd, args)
		},
	}
	rootCmd.AddCommand(tradesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openRepo() (*sqlite.Repository, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	appLogger := logger.NewZapLogger(cfg.LogLevel, cfg.LogFormat)
	return sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
}

func listRuns(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No backtest runs found. Run backtest_runner with --persist first.")
		return nil
	}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Run\tData\tSL%\tTP%\tTrades\tWinRate\tNetPNL\tPF\tMaxDD%\tReturn%\tSharpe\t")
	for _, r := range runs {
		s := r.Summary
		fmt.Fprintf(w, "%s\t%s..%s\t%.2f\t%.2f\t%d\t%.2f\t%.2f\t%s\t%.2f\t%.2f\t%.2f\t\n",
			r.ID[:8],
			r.DataFrom.Format("2006-01-02"),
			r.DataTo.Format("2006-01-02"),
			r.Policy.StopLossPct*100,
			r.Policy.TakeProfitPct*100,
			s.TotalTrades,
			s.WinRate*100,
			s.NetPNL,
			profitFactor(s.ProfitFactor),
			s.MaxDrawdownPct*100,
			s.ReturnPct*100,
			s.SharpeRatio,
		)
	}
	return w.Flush()
}

func showTrades(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	runs, err := repo.ListRuns(ctx, 0)
	if err != nil {
		return err
	}
	var run *domain.BacktestRun
	for _, r := range runs {
		if r.ID == runID || (len(runID) >= 8 && strings.HasPrefix(r.ID, runID)) {
			run = r
			break
		}
	}
	if run == nil {
		return fmt.Errorf("backtest run %q not found", runID)
	}

	trades, err := repo.FindRunTrades(ctx, run.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "ID\tSide\tEntry\tExit\tEntryPx\tExitPx\tReason\tNetPNL\tHolding\t")
	for _, t := range trades {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%s\t%.2f\t%s\t\n",
			t.PositionID, t.Side,
			t.EntryTime.Format("01-02 15:04"), t.ExitTime.Format("01-02 15:04"),
			t.EntryPrice, t.ExitPrice, t.CloseReason, t.NetPNL, t.Holding.Round(time.Minute))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Daily breakdown
	fmt.Println("\n## Daily P&L")
	daily := analytics.DailyPNL(trades)
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		fmt.Printf("%s  %10.2f\n", d, daily[d])
	}
	return nil
}

func profitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
