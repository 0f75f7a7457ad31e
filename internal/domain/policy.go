package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidPolicy is returned when a policy bundle fails validation.
var ErrInvalidPolicy = errors.New("invalid strategy policy")

// SignalThresholds configures the five-gate filter pipeline.
type SignalThresholds struct {
	DeltaLong     float64 `yaml:"delta_long" json:"delta_long"`         // Call delta must exceed this
	GammaLong     float64 `yaml:"gamma_long" json:"gamma_long"`         // Call gamma must exceed this
	DeltaShort    float64 `yaml:"delta_short" json:"delta_short"`       // Put delta must be below its negation
	GammaShort    float64 `yaml:"gamma_short" json:"gamma_short"`       // Put gamma must exceed this
	Theta         float64 `yaml:"theta" json:"theta"`                   // Theta must be below its negation
	Vega          float64 `yaml:"vega" json:"vega"`                     // Vega must exceed this
	RSIOversold   float64 `yaml:"rsi_oversold" json:"rsi_oversold"`     // LONG requires RSI below
	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsi_overbought"` // SHORT requires RSI above
	VIXCeiling    float64 `yaml:"vix_ceiling" json:"vix_ceiling"`       // Both sides require VIX below
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q (want HH:MM): %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns the number of minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant at this clock time on the calendar day of t in loc.
func (c ClockTime) On(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// TradingWindow is the half-open [Start, End) intraday entry window.
type TradingWindow struct {
	Start    ClockTime
	End      ClockTime
	Location *time.Location
}

// Loc returns the window location, defaulting to UTC.
func (w TradingWindow) Loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Policy is the immutable configuration bundle shared by every component.
// It is passed by value so a running engine cannot observe later edits.
type Policy struct {
	Symbol        string
	Signal        SignalThresholds
	StopLossPct   float64 // Fraction of entry, e.g. 0.01 for 1%
	TakeProfitPct float64 // Fraction of entry, e.g. 0.02 for 2%
	Window        TradingWindow
	LotSize       int
	RSIPeriod     int
	MAPeriod      int     // Lookback of the moving-average reference
	CostPerOrder  float64 // Flat transaction cost charged per order
}

// Validate checks the policy for misconfiguration, reporting every problem at once.
func (p Policy) Validate() error {
	var errs []string

	for _, f := range []namedValue{
		{"delta_long", p.Signal.DeltaLong}, {"gamma_long", p.Signal.GammaLong},
		{"delta_short", p.Signal.DeltaShort}, {"gamma_short", p.Signal.GammaShort},
		{"theta", p.Signal.Theta}, {"vega", p.Signal.Vega},
		{"rsi_oversold", p.Signal.RSIOversold}, {"rsi_overbought", p.Signal.RSIOverbought},
		{"vix_ceiling", p.Signal.VIXCeiling}, {"stop_loss", p.StopLossPct},
		{"take_profit", p.TakeProfitPct}, {"cost_per_order", p.CostPerOrder},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errs = append(errs, fmt.Sprintf("%s must be finite", f.name))
		}
	}

	if p.Symbol == "" {
		errs = append(errs, "symbol is required")
	}
	if p.StopLossPct <= 0 {
		errs = append(errs, "stop loss must be positive")
	}
	if p.TakeProfitPct <= 0 {
		errs = append(errs, "take profit must be positive")
	}
	if p.LotSize <= 0 {
		errs = append(errs, "lot size must be positive")
	}
	if p.Signal.RSIOversold < 0 || p.Signal.RSIOverbought > 100 {
		errs = append(errs, "RSI levels must be within 0-100")
	}
	if p.Signal.RSIOversold >= p.Signal.RSIOverbought {
		errs = append(errs, "RSI oversold level must be below the overbought level")
	}
	if p.Signal.VIXCeiling <= 0 {
		errs = append(errs, "VIX ceiling must be positive")
	}
	if p.CostPerOrder < 0 {
		errs = append(errs, "cost per order cannot be negative")
	}
	if p.RSIPeriod < 0 || p.MAPeriod < 0 {
		errs = append(errs, "indicator periods cannot be negative")
	}
	if !validClock(p.Window.Start) || !validClock(p.Window.End) {
		errs = append(errs, "trading window times must be valid clock times")
	} else if p.Window.End.Minutes() <= p.Window.Start.Minutes() {
		errs = append(errs, fmt.Sprintf("trading window end %s must be after start %s", p.Window.End, p.Window.Start))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(errs, "; "))
	}
	return nil
}

func validClock(c ClockTime) bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}
