package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/usecase"
)

// Config is the YAML file layout. Secrets never live here, they come
// from the environment via Secrets.
type Config struct {
	Symbols     []string `yaml:"symbols"`
	Timeframe   string   `yaml:"timeframe"`
	SignalsOnly bool     `yaml:"signals_only"`

	Loop struct {
		IntervalSec int `yaml:"interval_sec"`
	} `yaml:"loop"`

	Risk struct {
		RiskPercent        float64 `yaml:"risk_percent"`
		Leverage           float64 `yaml:"leverage"`
		StopLossPercent    float64 `yaml:"stop_loss_percent"`
		TakeProfitPercent  float64 `yaml:"take_profit_percent"`
		MaxDrawdownPercent float64 `yaml:"max_drawdown_percent"`
	} `yaml:"risk"`

	Entry struct {
		Mode              string  `yaml:"mode"`
		LimitDeviationPct float64 `yaml:"limit_deviation_percent"`
		LimitIntervalSec  int     `yaml:"limit_interval_sec"`
		// nil means unset; an explicit 0 selects unbounded retries.
		LimitMaxAttempts    *int `yaml:"limit_max_attempts"`
		LimitFallbackMarket bool `yaml:"limit_fallback_market"`
	} `yaml:"entry"`

	Trailing struct {
		Enabled       bool    `yaml:"enabled"`
		Mode          string  `yaml:"mode"`
		ActivationPct float64 `yaml:"activation_percent"`
		StepPct       float64 `yaml:"step_percent"`
		OffsetPct     float64 `yaml:"offset_percent"`
		VolMultiplier float64 `yaml:"volatility_multiplier"`
	} `yaml:"trailing"`

	Averaging struct {
		Enabled bool `yaml:"enabled"`
		Steps   []struct {
			StepPercent float64 `yaml:"step_percent"`
			Multiplier  float64 `yaml:"multiplier"`
		} `yaml:"steps"`
	} `yaml:"averaging"`

	Portfolio struct {
		MaxPositions int    `yaml:"max_positions"`
		CapitalMode  string `yaml:"capital_mode"`
	} `yaml:"portfolio"`

	Overrides map[string]usecase.PairOverride `yaml:"pair_overrides"`

	Indicators struct {
		CandleLimit     int     `yaml:"candle_limit"`
		RSIPeriod       int     `yaml:"rsi_period"`
		RSIOversold     float64 `yaml:"rsi_oversold"`
		RSIOverbought   float64 `yaml:"rsi_overbought"`
		BollingerPeriod int     `yaml:"bollinger_period"`
		BollingerStdDev float64 `yaml:"bollinger_std_dev"`
		ATRPeriod       int     `yaml:"atr_period"`
	} `yaml:"indicators"`

	Notifications struct {
		Trades bool `yaml:"trades"`
		Errors bool `yaml:"errors"`
	} `yaml:"notifications"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Secrets are read from the environment (a .env file is honored when
// present).
type Secrets struct {
	BinanceAPIKey    string `envconfig:"BINANCE_API_KEY"`
	BinanceAPISecret string `envconfig:"BINANCE_API_SECRET"`
	BinanceTestnet   bool   `envconfig:"BINANCE_TESTNET" default:"false"`
	TelegramToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadSecrets() (*Secrets, error) {
	_ = godotenv.Load()
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols configured", domain.ErrInvalidConfig)
	}
	if c.Timeframe == "" {
		return fmt.Errorf("%w: timeframe is required", domain.ErrInvalidConfig)
	}
	if c.Loop.IntervalSec <= 0 {
		return fmt.Errorf("%w: loop.interval_sec must be positive", domain.ErrInvalidConfig)
	}
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 100 {
		return fmt.Errorf("%w: risk.risk_percent must be in (0, 100]", domain.ErrInvalidConfig)
	}
	switch c.Entry.Mode {
	case "", string(usecase.EntryMarket), string(usecase.EntryLimit):
	default:
		return fmt.Errorf("%w: unknown entry mode %q", domain.ErrInvalidConfig, c.Entry.Mode)
	}
	if c.Entry.LimitMaxAttempts != nil && *c.Entry.LimitMaxAttempts < 0 {
		return fmt.Errorf("%w: entry.limit_max_attempts must not be negative", domain.ErrInvalidConfig)
	}
	switch c.Trailing.Mode {
	case "", string(usecase.TrailingPercent), string(usecase.TrailingVolatility):
	default:
		return fmt.Errorf("%w: unknown trailing mode %q", domain.ErrInvalidConfig, c.Trailing.Mode)
	}
	switch c.Portfolio.CapitalMode {
	case "", string(usecase.CapitalFixed), string(usecase.CapitalPool):
	default:
		return fmt.Errorf("%w: unknown capital mode %q", domain.ErrInvalidConfig, c.Portfolio.CapitalMode)
	}
	if c.Averaging.Enabled {
		risk := usecase.NewRiskCalculator()
		if !risk.ValidateLadder(c.ladderSteps()) {
			return fmt.Errorf("%w: invalid averaging ladder", domain.ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Config) ladderSteps() []domain.LadderStep {
	steps := make([]domain.LadderStep, 0, len(c.Averaging.Steps))
	for _, s := range c.Averaging.Steps {
		steps = append(steps, domain.LadderStep{StepPercent: s.StepPercent, Multiplier: s.Multiplier})
	}
	return steps
}

// Settings converts the file into the trader's immutable snapshot,
// filling defaults where the file is silent.
func (c *Config) Settings() usecase.Settings {
	entryMode := usecase.EntryMode(c.Entry.Mode)
	if entryMode == "" {
		entryMode = usecase.EntryMarket
	}
	trailingMode := usecase.TrailingMode(c.Trailing.Mode)
	if trailingMode == "" {
		trailingMode = usecase.TrailingPercent
	}
	capitalMode := usecase.CapitalMode(c.Portfolio.CapitalMode)
	if capitalMode == "" {
		capitalMode = usecase.CapitalFixed
	}
	maxPositions := c.Portfolio.MaxPositions
	if maxPositions <= 0 {
		maxPositions = 1
	}
	limitInterval := time.Duration(c.Entry.LimitIntervalSec) * time.Second
	if limitInterval <= 0 {
		limitInterval = 5 * time.Second
	}
	limitAttempts := 3
	if c.Entry.LimitMaxAttempts != nil {
		limitAttempts = *c.Entry.LimitMaxAttempts
	}

	return usecase.Settings{
		Symbols:     c.Symbols,
		Timeframe:   c.Timeframe,
		Interval:    time.Duration(c.Loop.IntervalSec) * time.Second,
		SignalsOnly: c.SignalsOnly,
		Defaults: usecase.PairParams{
			RiskPercent:    c.Risk.RiskPercent,
			Leverage:       c.Risk.Leverage,
			StopLossPct:    c.Risk.StopLossPercent,
			TakeProfitPct:  c.Risk.TakeProfitPercent,
			MaxDrawdownPct: c.Risk.MaxDrawdownPercent,
		},
		Overrides: c.Overrides,
		Entry: usecase.EntrySettings{
			Mode:              entryMode,
			LimitDeviationPct: c.Entry.LimitDeviationPct,
			LimitInterval:     limitInterval,
			LimitMaxAttempts:  limitAttempts,
			FallbackToMarket:  c.Entry.LimitFallbackMarket,
		},
		Trailing: usecase.TrailingSettings{
			Enabled:       c.Trailing.Enabled,
			Mode:          trailingMode,
			ActivationPct: c.Trailing.ActivationPct,
			StepPct:       c.Trailing.StepPct,
			OffsetPct:     c.Trailing.OffsetPct,
			VolMultiplier: c.Trailing.VolMultiplier,
		},
		Averaging: usecase.AveragingSettings{
			Enabled:        c.Averaging.Enabled,
			Steps:          c.ladderSteps(),
			MaxDrawdownPct: c.Risk.MaxDrawdownPercent,
		},
		Portfolio: usecase.PortfolioSettings{
			MaxPositions: maxPositions,
			CapitalMode:  capitalMode,
		},
	}
}

// IndicatorSettings merges the file over the evaluator defaults.
func (c *Config) IndicatorSettings() usecase.IndicatorSettings {
	s := usecase.DefaultIndicatorSettings()
	if c.Indicators.CandleLimit > 0 {
		s.CandleLimit = c.Indicators.CandleLimit
	}
	if c.Indicators.RSIPeriod > 0 {
		s.RSIPeriod = c.Indicators.RSIPeriod
	}
	if c.Indicators.RSIOversold > 0 {
		s.RSIOversold = c.Indicators.RSIOversold
	}
	if c.Indicators.RSIOverbought > 0 {
		s.RSIOverbought = c.Indicators.RSIOverbought
	}
	if c.Indicators.BollingerPeriod > 0 {
		s.BollingerPeriod = c.Indicators.BollingerPeriod
	}
	if c.Indicators.BollingerStdDev > 0 {
		s.BollingerStdDev = c.Indicators.BollingerStdDev
	}
	if c.Indicators.ATRPeriod > 0 {
		s.ATRPeriod = c.Indicators.ATRPeriod
	}
	return s
}
