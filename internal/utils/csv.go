package utils

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"niftyGreeksBot/internal/domain"
)

// Result file names written by SaveResults.
const (
	TradesFile  = "trades.csv"
	EquityFile  = "equity.csv"
	SummaryFile = "summary.json"
)

// money renders a currency amount with two decimals.
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// WriteTradesCSV writes one row per closed trade.
func WriteTradesCSV(w io.Writer, trades []domain.TradeRecord) error {
	writer := csv.NewWriter(w)

	// Write header
	if err := writer.Write([]string{
		"position_id", "symbol", "side", "quantity", "entry_time", "exit_time",
		"entry_price", "exit_price", "close_reason", "pnl", "costs", "net_pnl", "holding",
	}); err != nil {
		return err
	}

	for _, t := range trades {
		if err := writer.Write([]string{
			strconv.FormatInt(t.PositionID, 10),
			t.Symbol,
			string(t.Side),
			strconv.Itoa(t.Quantity),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			money(t.EntryPrice),
			money(t.ExitPrice),
			string(t.CloseReason),
			money(t.PNL),
			money(t.Costs),
			money(t.NetPNL),
			t.Holding.String(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteEquityCSV writes the equity curve, one row per sample.
func WriteEquityCSV(w io.Writer, points []domain.EquityPoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"time", "equity", "drawdown"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{
			p.Time.Format(time.RFC3339),
			money(p.Equity),
			strconv.FormatFloat(p.Drawdown, 'f', 6, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

type summaryJSON struct {
	domain.PerformanceSummary
	ProfitFactor   interface{} `json:"profit_factor"` // Number, or "inf" without losing trades
	AverageHolding string      `json:"average_holding"`
}

// WriteSummaryJSON writes the performance summary as indented JSON.
func WriteSummaryJSON(w io.Writer, summary domain.PerformanceSummary) error {
	out := summaryJSON{
		PerformanceSummary: summary,
		ProfitFactor:       summary.ProfitFactor,
		AverageHolding:     summary.AverageHoldingDuration.String(),
	}
	if math.IsInf(summary.ProfitFactor, 1) {
		out.ProfitFactor = "inf"
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// SaveResults writes the trades, equity and summary files into dir, creating it if needed.
func SaveResults(dir string, trades []domain.TradeRecord, curve []domain.EquityPoint, summary domain.PerformanceSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{TradesFile, func(w io.Writer) error { return WriteTradesCSV(w, trades) }},
		{EquityFile, func(w io.Writer) error { return WriteEquityCSV(w, curve) }},
		{SummaryFile, func(w io.Writer) error { return WriteSummaryJSON(w, summary) }},
	}
	for _, wr := range writers {
		if err := writeFile(filepath.Join(dir, wr.name), wr.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
