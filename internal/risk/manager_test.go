package risk

import (
	"testing"
	"time"

	"niftyGreeksBot/internal/domain"
)

func newTestManager(t *testing.T) *RiskManager {
	t.Helper()
	manager, err := NewRiskManager(RiskConfig{StopLossPercent: 0.01, TakeProfitPercent: 0.02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return manager
}

func TestRiskManagerEvaluate(t *testing.T) {
	manager := newTestManager(t)

	tests := []struct {
		name  string
		side  domain.Side
		price float64
		want  domain.RiskAction
	}{
		{"long hold on small gain", domain.Long, 101, domain.RiskHold},
		{"long take profit at exactly 2%", domain.Long, 102, domain.RiskTakeProfit},
		{"long take profit beyond target", domain.Long, 105, domain.RiskTakeProfit},
		{"long stop loss at exactly 1%", domain.Long, 99, domain.RiskStopLoss},
		{"long stop loss on gap down", domain.Long, 90, domain.RiskStopLoss},
		{"long hold just above stop", domain.Long, 99.5, domain.RiskHold},
		{"short take profit on 2% drop", domain.Short, 98, domain.RiskTakeProfit},
		{"short stop loss on 1% rise", domain.Short, 101, domain.RiskStopLoss},
		{"short hold unchanged", domain.Short, 100, domain.RiskHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := domain.Position{Side: tt.side, EntryPrice: 100, Quantity: 50, Status: domain.StatusOpen}
			if got := manager.Evaluate(pos, tt.price); got != tt.want {
				t.Errorf("Evaluate(%s @ %v) = %s, want %s", tt.side, tt.price, got, tt.want)
			}
		})
	}
}

func TestRiskManagerEvaluateRealisticPrices(t *testing.T) {
	manager := newTestManager(t)
	entry := 22137.35
	pos := domain.Position{Side: domain.Long, EntryPrice: entry, Quantity: 50}

	if got := manager.Evaluate(pos, entry*0.99); got != domain.RiskStopLoss {
		t.Errorf("expected stop loss at exactly -1%%, got %s", got)
	}
	if got := manager.Evaluate(pos, entry*1.02); got != domain.RiskTakeProfit {
		t.Errorf("expected take profit at exactly +2%%, got %s", got)
	}
}

func TestRiskManagerLevels(t *testing.T) {
	manager := newTestManager(t)

	if got, want := manager.GetStopLoss(100, domain.Long), 100*(1-0.01); got != want {
		t.Errorf("Expected long stop loss %f, got %f", want, got)
	}
	if got, want := manager.GetTakeProfit(100, domain.Long), 100*(1+0.02); got != want {
		t.Errorf("Expected long take profit %f, got %f", want, got)
	}
	if got, want := manager.GetStopLoss(100, domain.Short), 100*(1+0.01); got != want {
		t.Errorf("Expected short stop loss %f, got %f", want, got)
	}
	if got, want := manager.GetTakeProfit(100, domain.Short), 100*(1-0.02); got != want {
		t.Errorf("Expected short take profit %f, got %f", want, got)
	}
}

func TestNewRiskManagerRejectsNonPositive(t *testing.T) {
	if _, err := NewRiskManager(RiskConfig{StopLossPercent: 0, TakeProfitPercent: 0.02}); err == nil {
		t.Error("Expected error for zero stop loss")
	}
	if _, err := NewRiskManager(RiskConfig{StopLossPercent: 0.01, TakeProfitPercent: -1}); err == nil {
		t.Error("Expected error for negative take profit")
	}
}

func TestTimeGate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	gate := NewTimeGate(domain.TradingWindow{
		Start:    domain.ClockTime{Hour: 9, Minute: 20},
		End:      domain.ClockTime{Hour: 15, Minute: 0},
		Location: ist,
	})
	day := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, ist) }

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"before start", day(9, 19, 59), false},
		{"at start", day(9, 20, 0), true},
		{"mid session", day(12, 0, 0), true},
		{"last minute", day(14, 59, 59), true},
		{"at end", day(15, 0, 0), false},
		{"after end", day(15, 30, 0), false},
		{"same instant in UTC", day(10, 0, 0).UTC(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.PermitsEntry(tt.ts); got != tt.want {
				t.Errorf("PermitsEntry(%s) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}

	entry := day(10, 0, 0)
	if gate.ReachedSessionEnd(entry, day(14, 59, 0)) {
		t.Error("session end reported before 15:00")
	}
	if !gate.ReachedSessionEnd(entry, day(15, 0, 0)) {
		t.Error("session end not reported at 15:00")
	}
	if !gate.ReachedSessionEnd(entry, time.Date(2024, 3, 2, 9, 30, 0, 0, ist)) {
		t.Error("session end not reported on the next day")
	}
}
