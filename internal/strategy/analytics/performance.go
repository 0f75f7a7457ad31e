package analytics

import (
	"math"
	"sort"
	"time"

	"niftyGreeksBot/internal/domain"
)

// Summarize computes the performance summary of a trade sequence.
// It is a pure function of its inputs; trades are processed in exit order.
func Summarize(trades []domain.TradeRecord, initialCapital float64) domain.PerformanceSummary {
	summary := domain.PerformanceSummary{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		ExitReasons:    make(map[domain.CloseReason]int),
	}
	if len(trades) == 0 {
		return summary
	}

	ordered := byExitTime(trades)

	var grossProfit, grossLoss float64
	var consecutiveWins, consecutiveLosses int
	var totalHolding time.Duration

	equity := initialCapital
	peak := initialCapital

	for _, trade := range ordered {
		summary.TotalTrades++
		summary.ExitReasons[trade.CloseReason]++
		totalHolding += trade.Holding

		if trade.IsWin() {
			summary.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			grossProfit += trade.PNL
		} else {
			summary.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			grossLoss += -trade.PNL
		}
		if consecutiveWins > summary.MaxConsecutiveWins {
			summary.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > summary.MaxConsecutiveLosses {
			summary.MaxConsecutiveLosses = consecutiveLosses
		}

		summary.GrossPNL += trade.PNL
		summary.TotalCosts += trade.Costs

		equity += trade.NetPNL

		if equity > peak {
			peak = equity
		}
		summary.MaxDrawdown = math.Max(summary.MaxDrawdown, peak-equity)
		summary.MaxDrawdownPct = math.Max(summary.MaxDrawdownPct, drawdownPct(peak, equity))
	}

	summary.NetPNL = summary.GrossPNL - summary.TotalCosts
	summary.FinalCapital = equity
	summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades)
	if summary.WinningTrades > 0 {
		summary.AverageWin = grossProfit / float64(summary.WinningTrades)
	}
	if summary.LosingTrades > 0 {
		summary.AverageLoss = -grossLoss / float64(summary.LosingTrades)
	}
	summary.ProfitFactor = profitFactor(grossProfit, grossLoss)
	summary.AverageHoldingDuration = totalHolding / time.Duration(summary.TotalTrades)
	if initialCapital != 0 {
		summary.ReturnPct = (equity - initialCapital) / initialCapital
	}
	summary.SharpeRatio = sharpeRatio(dailyReturns(ordered, initialCapital))

	return summary
}

// profitFactor is gross profit over gross loss. With no losses it is +Inf when
// there was any profit and 0 otherwise.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// tradingDaysPerYear annualises daily Sharpe.
const tradingDaysPerYear = 252

// dailyReturns is the day-over-day change of realized equity, taken at the
// last exit of each trading day. The first day is measured against the
// initial capital. Days without exits contribute no sample.
func dailyReturns(ordered []domain.TradeRecord, initialCapital float64) []float64 {
	var returns []float64
	prev, equity := initialCapital, initialCapital
	for i, trade := range ordered {
		equity += trade.NetPNL
		day := trade.ExitTime.Format("2006-01-02")
		if i+1 < len(ordered) && ordered[i+1].ExitTime.Format("2006-01-02") == day {
			continue
		}
		if prev != 0 {
			returns = append(returns, equity/prev-1)
		}
		prev = equity
	}
	return returns
}

// sharpeRatio is the annualised mean over the sample standard deviation of
// daily returns.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}
	return math.Sqrt(tradingDaysPerYear) * mean / stdDev
}

// EquityCurve returns realized equity after each trade, starting from the
// initial capital at the first entry.
func EquityCurve(trades []domain.TradeRecord, initialCapital float64) []domain.EquityPoint {
	ordered := byExitTime(trades)
	curve := make([]domain.EquityPoint, 0, len(ordered)+1)
	if len(ordered) == 0 {
		return curve
	}
	curve = append(curve, domain.EquityPoint{Time: ordered[0].EntryTime, Equity: initialCapital})

	equity, peak := initialCapital, initialCapital
	for _, trade := range ordered {
		equity += trade.NetPNL
		if equity > peak {
			peak = equity
		}
		curve = append(curve, domain.EquityPoint{
			Time:     trade.ExitTime,
			Equity:   equity,
			Drawdown: drawdownPct(peak, equity),
		})
	}
	return curve
}

// DailyPNL sums net P&L per trading day (exit date, in the exit time's location).
func DailyPNL(trades []domain.TradeRecord) map[string]float64 {
	daily := make(map[string]float64)
	for _, trade := range trades {
		daily[trade.ExitTime.Format("2006-01-02")] += trade.NetPNL
	}
	return daily
}

func drawdownPct(peak, equity float64) float64 {
	if peak <= 0 || equity >= peak {
		return 0
	}
	return (peak - equity) / peak
}

func byExitTime(trades []domain.TradeRecord) []domain.TradeRecord {
	ordered := make([]domain.TradeRecord, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})
	return ordered
}
