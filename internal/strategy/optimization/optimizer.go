package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/strategy/backtesting"
)

// Parameter names accepted in ParameterRange.Name.
const (
	ParamStopLoss      = "stop_loss_pct"
	ParamTakeProfit    = "take_profit_pct"
	ParamDeltaLong     = "delta_long"
	ParamDeltaShort    = "delta_short"
	ParamGammaLong     = "gamma_long"
	ParamGammaShort    = "gamma_short"
	ParamTheta         = "theta"
	ParamVega          = "vega"
	ParamRSIOversold   = "rsi_oversold"
	ParamRSIOverbought = "rsi_overbought"
	ParamVIXCeiling    = "vix_ceiling"
)

var setters = map[string]func(p *domain.Policy, v float64){
	ParamStopLoss:      func(p *domain.Policy, v float64) { p.StopLossPct = v },
	ParamTakeProfit:    func(p *domain.Policy, v float64) { p.TakeProfitPct = v },
	ParamDeltaLong:     func(p *domain.Policy, v float64) { p.Signal.DeltaLong = v },
	ParamDeltaShort:    func(p *domain.Policy, v float64) { p.Signal.DeltaShort = v },
	ParamGammaLong:     func(p *domain.Policy, v float64) { p.Signal.GammaLong = v },
	ParamGammaShort:    func(p *domain.Policy, v float64) { p.Signal.GammaShort = v },
	ParamTheta:         func(p *domain.Policy, v float64) { p.Signal.Theta = v },
	ParamVega:          func(p *domain.Policy, v float64) { p.Signal.Vega = v },
	ParamRSIOversold:   func(p *domain.Policy, v float64) { p.Signal.RSIOversold = v },
	ParamRSIOverbought: func(p *domain.Policy, v float64) { p.Signal.RSIOverbought = v },
	ParamVIXCeiling:    func(p *domain.Policy, v float64) { p.Signal.VIXCeiling = v },
}

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// OptimizationResult holds the outcome of one parameter combination
type OptimizationResult struct {
	Parameters map[string]float64
	Policy     domain.Policy
	Summary    domain.PerformanceSummary
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	BasePolicy      domain.Policy
	InitialFunds    float64
	ScoreFunction   func(domain.PerformanceSummary) float64
	MaxWorkers      int // Defaults to GOMAXPROCS
}

// Optimizer sweeps policy parameters over a fixed snapshot history
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) (*Optimizer, error) {
	if len(config.ParameterRanges) == 0 {
		return nil, fmt.Errorf("at least one parameter range is required")
	}
	for _, r := range config.ParameterRanges {
		if _, ok := setters[r.Name]; !ok {
			return nil, fmt.Errorf("unknown parameter %q", r.Name)
		}
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("invalid range for %s: min=%v max=%v step=%v", r.Name, r.Min, r.Max, r.Step)
		}
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.GOMAXPROCS(0)
	}
	return &Optimizer{config: config}, nil
}

// Optimize backtests every parameter combination and returns the results
// ranked by score. Combinations that yield an invalid policy are skipped.
// Each backtest owns its own state machine, so runs share nothing mutable.
func (o *Optimizer) Optimize(ctx context.Context, snapshots []domain.MarketSnapshot) ([]OptimizationResult, error) {
	if err := backtesting.ValidateSequence(snapshots); err != nil {
		return nil, err
	}

	combinations := o.generateParameterCombinations()
	resultChan := make(chan OptimizationResult, len(combinations))
	errChan := make(chan error, len(combinations))
	sem := make(chan struct{}, o.config.MaxWorkers)
	var wg sync.WaitGroup

	for _, params := range combinations {
		policy := o.policyWithParams(params)
		if policy.Validate() != nil {
			continue
		}

		wg.Add(1)
		go func(params map[string]float64, policy domain.Policy) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := backtesting.Backtest(ctx, snapshots, backtesting.BacktestConfig{
				Policy:       policy,
				InitialFunds: o.config.InitialFunds,
			})
			if err != nil {
				errChan <- fmt.Errorf("backtest with %s: %w", FormatParameters(params), err)
				return
			}
			resultChan <- OptimizationResult{
				Parameters: params,
				Policy:     policy,
				Summary:    result.Summary,
				Score:      o.config.ScoreFunction(result.Summary),
			}
		}(params, policy)
	}

	wg.Wait()
	close(resultChan)
	close(errChan)

	if err, ok := <-errChan; ok {
		return nil, err
	}

	results := make([]OptimizationResult, 0, len(combinations))
	for result := range resultChan {
		results = append(results, result)
	}
	sortResultsByScore(results)
	return results, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	current := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for i := 0; i <= steps; i++ {
			value := param.Min + float64(i)*param.Step
			if param.IsInt {
				value = math.Round(value)
			} else {
				value = math.Round(value*1e9) / 1e9
			}
			current[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

func (o *Optimizer) policyWithParams(params map[string]float64) domain.Policy {
	policy := o.config.BasePolicy
	for name, value := range params {
		setters[name](&policy, value)
	}
	return policy
}

// sortResultsByScore orders results by score, highest first. Ties are broken by
// the parameter set so the order does not depend on goroutine scheduling.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return FormatParameters(results[i].Parameters) < FormatParameters(results[j].Parameters)
	})
}

// FormatParameters renders a parameter set as sorted key=value pairs.
func FormatParameters(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, ",")
}

// DefaultScoreFunction rewards net profit and penalises drawdown. A run with
// no trades scores zero.
func DefaultScoreFunction(s domain.PerformanceSummary) float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	pf := s.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = 10
	}
	score := 0.0
	score += s.ReturnPct * 100 * 0.4
	score += s.WinRate * 0.2
	score += math.Min(pf, 10) * 0.2
	score -= s.MaxDrawdownPct * 100 * 0.2
	return score
}
