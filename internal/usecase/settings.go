package usecase

import (
	"time"

	"github.com/vitos/crypto_auto_trader/internal/domain"
)

type CapitalMode string

const (
	// CapitalFixed sizes every position from the full free balance.
	CapitalFixed CapitalMode = "fixed"
	// CapitalPool sizes a new position from free balance net of capital
	// already locked by other open positions.
	CapitalPool CapitalMode = "pool"
)

type EntryMode string

const (
	EntryMarket EntryMode = "market"
	EntryLimit  EntryMode = "limit"
)

// PairParams are the per-symbol trade parameters after overrides are merged.
type PairParams struct {
	RiskPercent    float64
	Leverage       float64
	StopLossPct    float64
	TakeProfitPct  float64
	MaxDrawdownPct float64
}

// PairOverride overrides individual PairParams fields for one symbol.
type PairOverride struct {
	RiskPercent   *float64 `yaml:"risk_percent"`
	Leverage      *float64 `yaml:"leverage"`
	StopLossPct   *float64 `yaml:"stop_loss_percent"`
	TakeProfitPct *float64 `yaml:"take_profit_percent"`
}

type EntrySettings struct {
	Mode              EntryMode
	LimitDeviationPct float64
	LimitInterval     time.Duration
	LimitMaxAttempts  int
	FallbackToMarket  bool
}

type TrailingSettings struct {
	Enabled       bool
	Mode          TrailingMode
	ActivationPct float64
	StepPct       float64
	OffsetPct     float64
	VolMultiplier float64
}

type AveragingSettings struct {
	Enabled        bool
	Steps          []domain.LadderStep
	MaxDrawdownPct float64
}

type PortfolioSettings struct {
	MaxPositions int
	CapitalMode  CapitalMode
}

// Settings is the immutable configuration snapshot the trader runs on. It is
// built once at startup; the orchestrator never mutates it, which keeps the
// sizing/ladder/trailing calculations testable in isolation from the loop.
type Settings struct {
	Symbols     []string
	Timeframe   string
	Interval    time.Duration
	SignalsOnly bool

	Defaults  PairParams
	Overrides map[string]PairOverride

	Entry     EntrySettings
	Trailing  TrailingSettings
	Averaging AveragingSettings
	Portfolio PortfolioSettings
}

// ParamsFor returns trade parameters for a symbol with overrides applied.
func (s Settings) ParamsFor(symbol string) PairParams {
	p := s.Defaults
	o, ok := s.Overrides[symbol]
	if !ok {
		return p
	}
	if o.RiskPercent != nil {
		p.RiskPercent = *o.RiskPercent
	}
	if o.Leverage != nil {
		p.Leverage = *o.Leverage
	}
	if o.StopLossPct != nil {
		p.StopLossPct = *o.StopLossPct
	}
	if o.TakeProfitPct != nil {
		p.TakeProfitPct = *o.TakeProfitPct
	}
	return p
}
