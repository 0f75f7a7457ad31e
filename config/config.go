package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Kolkata on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"niftyGreeksBot/internal/adapters/logger" // Import the logger package for LogLevel
	"niftyGreeksBot/internal/domain"
	"niftyGreeksBot/internal/ports"
)

// Feed sources accepted in FEED_SOURCE.
const (
	FeedSourceCSV        = "csv"
	FeedSourceClickHouse = "clickhouse"
)

// Config holds all application configuration.
type Config struct {
	// Instrument
	Symbol   string
	Quantity int // Lot size per position

	// Signal thresholds
	DeltaLongThreshold  float64
	DeltaShortThreshold float64
	GammaLongThreshold  float64
	GammaShortThreshold float64
	ThetaThreshold      float64
	VegaThreshold       float64
	RSIPeriod           int
	RSIOversold         float64
	RSIOverbought       float64
	MAPeriod            int
	VIXThreshold        float64

	// Risk, as fractions (STOP_LOSS_PERCENT=1 becomes 0.01)
	StopLoss   float64
	TakeProfit float64

	// Trading window
	TradingStart domain.ClockTime
	TradingEnd   domain.ClockTime
	Location     *time.Location

	CostPerOrder   float64
	InitialCapital float64

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string

	// Live loop
	PollInterval  time.Duration
	FlattenOnStop bool

	// Snapshot feed
	FeedSource      string
	FeedPath        string // File or doublestar pattern for the CSV feed
	FeedMaxAttempts int
	FeedRetryMin    time.Duration
	FeedRetryMax    time.Duration

	// ClickHouse
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseTable    string

	// Event hub listen address, empty disables it
	EventsAddr string

	// PolicyFile is an optional YAML bundle overriding the policy values above.
	PolicyFile string
}

// policyFile is the YAML form of a policy bundle. Absent keys keep the env value;
// a signal block replaces every threshold.
type policyFile struct {
	Symbol        *string                  `yaml:"symbol"`
	LotSize       *int                     `yaml:"lot_size"`
	Signal        *domain.SignalThresholds `yaml:"signal"`
	StopLossPct   *float64                 `yaml:"stop_loss_percent"`
	TakeProfitPct *float64                 `yaml:"take_profit_percent"`
	TradingStart  *string                  `yaml:"trading_start"`
	TradingEnd    *string                  `yaml:"trading_end"`
	RSIPeriod     *int                     `yaml:"rsi_period"`
	MAPeriod      *int                     `yaml:"ma_period"`
	CostPerOrder  *float64                 `yaml:"cost_per_order"`
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.Symbol = getEnv("SYMBOL", "NIFTY")
	cfg.Quantity, err = getEnvAsIntRequired("QUANTITY", 50)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUANTITY: %v", err))
	}

	floats := []struct {
		key  string
		def  float64
		dest *float64
	}{
		{"DELTA_LONG_THRESHOLD", 0.5, &cfg.DeltaLongThreshold},
		{"DELTA_SHORT_THRESHOLD", 0.5, &cfg.DeltaShortThreshold},
		{"GAMMA_LONG_THRESHOLD", 0.01, &cfg.GammaLongThreshold},
		{"GAMMA_SHORT_THRESHOLD", 0.01, &cfg.GammaShortThreshold},
		{"THETA_THRESHOLD", 0.02, &cfg.ThetaThreshold},
		{"VEGA_THRESHOLD", 0.05, &cfg.VegaThreshold},
		{"RSI_OVERSOLD", 30, &cfg.RSIOversold},
		{"RSI_OVERBOUGHT", 70, &cfg.RSIOverbought},
		{"VIX_THRESHOLD", 20, &cfg.VIXThreshold},
		{"STOP_LOSS_PERCENT", 1, &cfg.StopLoss},
		{"TAKE_PROFIT_PERCENT", 2, &cfg.TakeProfit},
		{"COST_PER_ORDER", 20, &cfg.CostPerOrder},
		{"INITIAL_CAPITAL", 100000, &cfg.InitialCapital},
	}
	for _, f := range floats {
		*f.dest, err = getEnvAsFloatRequired(f.key, f.def)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}
	cfg.StopLoss /= 100
	cfg.TakeProfit /= 100
	if cfg.InitialCapital <= 0 {
		errs = append(errs, "INITIAL_CAPITAL must be positive")
	}

	cfg.RSIPeriod, err = getEnvAsIntRequired("RSI_PERIOD", 14)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RSI_PERIOD: %v", err))
	}
	cfg.MAPeriod, err = getEnvAsIntRequired("MA_PERIOD", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MA_PERIOD: %v", err))
	}

	cfg.TradingStart, err = domain.ParseClock(getEnv("TRADING_START", "09:20"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRADING_START: %v", err))
	}
	cfg.TradingEnd, err = domain.ParseClock(getEnv("TRADING_END", "15:15"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRADING_END: %v", err))
	}
	cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEZONE: %v", err))
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/nifty_greeks.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = getEnv("LOG_FORMAT", logger.FormatConsole)
	if cfg.LogFormat != logger.FormatConsole && cfg.LogFormat != logger.FormatJSON {
		errs = append(errs, "LOG_FORMAT must be console or json")
	}

	pollSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 5)
	if pollSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second
	cfg.FlattenOnStop = getEnvAsBool("FLATTEN_ON_STOP", false)

	// Feed
	cfg.FeedSource = strings.ToLower(getEnv("FEED_SOURCE", FeedSourceCSV))
	cfg.FeedPath = getEnv("FEED_PATH", "./data/snapshots.csv")
	switch cfg.FeedSource {
	case FeedSourceCSV:
		if cfg.FeedPath == "" {
			errs = append(errs, "FEED_PATH must be set for the csv feed")
		}
	case FeedSourceClickHouse:
	default:
		errs = append(errs, fmt.Sprintf("unknown FEED_SOURCE %q", cfg.FeedSource))
	}
	cfg.FeedMaxAttempts = getEnvAsInt("FEED_MAX_ATTEMPTS", 3)
	if cfg.FeedMaxAttempts <= 0 {
		errs = append(errs, "FEED_MAX_ATTEMPTS must be positive")
	}
	cfg.FeedRetryMin = time.Duration(getEnvAsInt("FEED_RETRY_MIN_MS", 200)) * time.Millisecond
	cfg.FeedRetryMax = time.Duration(getEnvAsInt("FEED_RETRY_MAX_MS", 5000)) * time.Millisecond
	if cfg.FeedRetryMin <= 0 || cfg.FeedRetryMax < cfg.FeedRetryMin {
		errs = append(errs, "FEED_RETRY_MIN_MS must be positive and not above FEED_RETRY_MAX_MS")
	}

	cfg.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", "localhost:9000")
	cfg.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
	cfg.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	cfg.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", "")
	cfg.ClickHouseTable = getEnv("CLICKHOUSE_TABLE", "nifty_snapshots")

	cfg.EventsAddr = getEnv("EVENTS_ADDR", "")

	cfg.PolicyFile = getEnv("POLICY_FILE", "")
	if cfg.PolicyFile != "" {
		if err := cfg.applyPolicyFile(cfg.PolicyFile); err != nil {
			errs = append(errs, err.Error())
		}
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}

	// The policy is validated last so it sees any file overrides.
	if err := cfg.Policy().Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyPolicyFile overlays a YAML policy bundle onto cfg.
func (c *Config) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read POLICY_FILE %s: %w", path, err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse POLICY_FILE %s: %w", path, err)
	}

	if pf.Symbol != nil {
		c.Symbol = *pf.Symbol
	}
	if pf.LotSize != nil {
		c.Quantity = *pf.LotSize
	}
	if s := pf.Signal; s != nil {
		c.DeltaLongThreshold = s.DeltaLong
		c.DeltaShortThreshold = s.DeltaShort
		c.GammaLongThreshold = s.GammaLong
		c.GammaShortThreshold = s.GammaShort
		c.ThetaThreshold = s.Theta
		c.VegaThreshold = s.Vega
		c.RSIOversold = s.RSIOversold
		c.RSIOverbought = s.RSIOverbought
		c.VIXThreshold = s.VIXCeiling
	}
	if pf.StopLossPct != nil {
		c.StopLoss = *pf.StopLossPct / 100
	}
	if pf.TakeProfitPct != nil {
		c.TakeProfit = *pf.TakeProfitPct / 100
	}
	if pf.TradingStart != nil {
		if c.TradingStart, err = domain.ParseClock(*pf.TradingStart); err != nil {
			return fmt.Errorf("POLICY_FILE trading_start: %w", err)
		}
	}
	if pf.TradingEnd != nil {
		if c.TradingEnd, err = domain.ParseClock(*pf.TradingEnd); err != nil {
			return fmt.Errorf("POLICY_FILE trading_end: %w", err)
		}
	}
	if pf.RSIPeriod != nil {
		c.RSIPeriod = *pf.RSIPeriod
	}
	if pf.MAPeriod != nil {
		c.MAPeriod = *pf.MAPeriod
	}
	if pf.CostPerOrder != nil {
		c.CostPerOrder = *pf.CostPerOrder
	}
	return nil
}

// Policy builds the immutable policy bundle shared by the engine components.
func (c *Config) Policy() domain.Policy {
	return domain.Policy{
		Symbol: c.Symbol,
		Signal: domain.SignalThresholds{
			DeltaLong:     c.DeltaLongThreshold,
			GammaLong:     c.GammaLongThreshold,
			DeltaShort:    c.DeltaShortThreshold,
			GammaShort:    c.GammaShortThreshold,
			Theta:         c.ThetaThreshold,
			Vega:          c.VegaThreshold,
			RSIOversold:   c.RSIOversold,
			RSIOverbought: c.RSIOverbought,
			VIXCeiling:    c.VIXThreshold,
		},
		StopLossPct:   c.StopLoss,
		TakeProfitPct: c.TakeProfit,
		Window: domain.TradingWindow{
			Start:    c.TradingStart,
			End:      c.TradingEnd,
			Location: c.Location,
		},
		LotSize:      c.Quantity,
		RSIPeriod:    c.RSIPeriod,
		MAPeriod:     c.MAPeriod,
		CostPerOrder: c.CostPerOrder,
	}
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Set but invalid is an error, unlike getEnvAsInt
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
