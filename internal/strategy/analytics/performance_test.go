package analytics

import (
	"math"
	"testing"
	"time"

	"niftyGreeksBot/internal/domain"
)

func trade(id int64, entry time.Time, minutes int, pnl, costs float64, reason domain.CloseReason) domain.TradeRecord {
	return domain.TradeRecord{
		PositionID:  id,
		Symbol:      "NIFTY",
		Side:        domain.Long,
		Quantity:    50,
		EntryTime:   entry,
		ExitTime:    entry.Add(time.Duration(minutes) * time.Minute),
		CloseReason: reason,
		PNL:         pnl,
		Costs:       costs,
		NetPNL:      pnl - costs,
		Holding:     time.Duration(minutes) * time.Minute,
	}
}

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	trades := []domain.TradeRecord{
		trade(1, base, 10, 1000, 0, domain.CloseReasonTakeProfit),
		trade(2, base.Add(time.Hour), 20, -500, 0, domain.CloseReasonStopLoss),
		trade(3, base.Add(2*time.Hour), 30, -250, 0, domain.CloseReasonStopLoss),
		trade(4, base.Add(3*time.Hour), 40, 750, 0, domain.CloseReasonTimeExit),
	}

	s := Summarize(trades, 100000)

	if s.TotalTrades != 4 {
		t.Errorf("Expected 4 total trades, got %d", s.TotalTrades)
	}
	if s.WinningTrades != 2 || s.LosingTrades != 2 {
		t.Errorf("Expected 2 wins and 2 losses, got %d and %d", s.WinningTrades, s.LosingTrades)
	}
	if s.WinRate != 0.5 {
		t.Errorf("Expected 0.5 win rate, got %f", s.WinRate)
	}
	if s.GrossPNL != 1000 {
		t.Errorf("Expected gross PNL 1000, got %f", s.GrossPNL)
	}
	if s.AverageWin != 875 {
		t.Errorf("Expected average win 875, got %f", s.AverageWin)
	}
	if s.AverageLoss != -375 {
		t.Errorf("Expected average loss -375, got %f", s.AverageLoss)
	}
	if s.ProfitFactor != 1750.0/750.0 {
		t.Errorf("Expected profit factor %f, got %f", 1750.0/750.0, s.ProfitFactor)
	}
	if s.MaxDrawdown != 750 {
		t.Errorf("Expected max drawdown 750, got %f", s.MaxDrawdown)
	}
	if want := 750.0 / 101000.0; math.Abs(s.MaxDrawdownPct-want) > 1e-12 {
		t.Errorf("Expected max drawdown pct %f, got %f", want, s.MaxDrawdownPct)
	}
	if s.MaxConsecutiveLosses != 2 || s.MaxConsecutiveWins != 1 {
		t.Errorf("Expected streaks 1/2, got %d/%d", s.MaxConsecutiveWins, s.MaxConsecutiveLosses)
	}
	if s.AverageHoldingDuration != 25*time.Minute {
		t.Errorf("Expected average holding 25m, got %s", s.AverageHoldingDuration)
	}
	if s.FinalCapital != 101000 {
		t.Errorf("Expected final capital 101000, got %f", s.FinalCapital)
	}
	if s.SharpeRatio != 0 {
		t.Errorf("Expected zero Sharpe with a single trading day, got %f", s.SharpeRatio)
	}
	if s.ExitReasons[domain.CloseReasonStopLoss] != 2 {
		t.Errorf("Expected 2 stop-loss exits, got %d", s.ExitReasons[domain.CloseReasonStopLoss])
	}
}

func TestSummarizeGrossEqualsSumOfTrades(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	pnls := []float64{12.5, -3.25, 0, 40, -17.75, 8}
	var trades []domain.TradeRecord
	var want float64
	for i, p := range pnls {
		trades = append(trades, trade(int64(i+1), base.Add(time.Duration(i)*time.Hour), 5, p, 1, domain.CloseReasonSignalReversal))
		want += p
	}

	s := Summarize(trades, 50000)
	if math.Abs(s.GrossPNL-want) > 1e-9 {
		t.Errorf("gross PNL %f does not equal sum of trades %f", s.GrossPNL, want)
	}
	if math.Abs(s.NetPNL-(want-6)) > 1e-9 {
		t.Errorf("net PNL %f, want %f", s.NetPNL, want-6)
	}
	if s.TotalCosts != 6 {
		t.Errorf("Expected total costs 6, got %f", s.TotalCosts)
	}
	// A zero P&L trade counts as a loss.
	if s.WinningTrades != 3 || s.LosingTrades != 3 {
		t.Errorf("Expected 3 wins and 3 losses, got %d and %d", s.WinningTrades, s.LosingTrades)
	}
}

func TestSummarizeSharpeUsesDailyEquityReturns(t *testing.T) {
	day := func(d, hour int) time.Time { return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC) }
	trades := []domain.TradeRecord{
		// Day 1 ends at 10100: +1%
		trade(1, day(1, 10), 10, 60, 0, domain.CloseReasonTakeProfit),
		trade(2, day(1, 12), 10, 40, 0, domain.CloseReasonTimeExit),
		// Day 2 ends flat at 10100: 0%
		trade(3, day(4, 10), 10, -50, 0, domain.CloseReasonStopLoss),
		trade(4, day(4, 11), 10, 50, 0, domain.CloseReasonSignalReversal),
		// Day 3 ends at 10302: +2%
		trade(5, day(5, 10), 10, 202, 0, domain.CloseReasonTakeProfit),
	}

	s := Summarize(trades, 10000)
	// Daily returns 0.01, 0, 0.02: mean 0.01, sample std 0.01
	want := math.Sqrt(252)
	if math.Abs(s.SharpeRatio-want) > 1e-6 {
		t.Errorf("Expected annualised daily Sharpe %f, got %f", want, s.SharpeRatio)
	}

	returns := dailyReturns(trades, 10000)
	if len(returns) != 3 {
		t.Fatalf("Expected one return per trading day, got %v", returns)
	}
}

func TestSummarizeProfitFactorEdges(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	allWins := Summarize([]domain.TradeRecord{trade(1, base, 5, 100, 0, domain.CloseReasonTakeProfit)}, 1000)
	if !math.IsInf(allWins.ProfitFactor, 1) {
		t.Errorf("Expected +Inf profit factor without losses, got %f", allWins.ProfitFactor)
	}
	if allWins.SharpeRatio != 0 {
		t.Errorf("Expected zero Sharpe for a single trade, got %f", allWins.SharpeRatio)
	}

	allLosses := Summarize([]domain.TradeRecord{trade(1, base, 5, -100, 0, domain.CloseReasonStopLoss)}, 1000)
	if allLosses.ProfitFactor != 0 {
		t.Errorf("Expected zero profit factor without wins, got %f", allLosses.ProfitFactor)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 100000)
	if s.TotalTrades != 0 || s.WinRate != 0 || s.FinalCapital != 100000 {
		t.Errorf("unexpected empty summary: %+v", s)
	}
}

func TestEquityCurve(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	trades := []domain.TradeRecord{
		trade(1, base, 10, 1000, 0, domain.CloseReasonTakeProfit),
		trade(2, base.Add(time.Hour), 10, -550, 0, domain.CloseReasonStopLoss),
	}

	curve := EquityCurve(trades, 10000)
	if len(curve) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(curve))
	}
	if curve[0].Equity != 10000 || curve[1].Equity != 11000 || curve[2].Equity != 10450 {
		t.Errorf("unexpected equity values: %+v", curve)
	}
	if curve[2].Drawdown != 0.05 {
		t.Errorf("Expected 5%% drawdown, got %f", curve[2].Drawdown)
	}

	daily := DailyPNL(trades)
	if daily["2024-03-01"] != 450 {
		t.Errorf("Expected daily PNL 450, got %f", daily["2024-03-01"])
	}
}
