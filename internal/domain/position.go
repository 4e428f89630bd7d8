package domain

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func (s Side) IsLong() bool {
	return s == SideLong
}

// CloseSide returns the order side that reduces a position of this side.
func (s Side) CloseSide() OrderSide {
	if s.IsLong() {
		return OrderSideSell
	}
	return OrderSideBuy
}

// EntrySide returns the order side that increases a position of this side.
func (s Side) EntrySide() OrderSide {
	if s.IsLong() {
		return OrderSideBuy
	}
	return OrderSideSell
}

type CloseReason string

const (
	CloseTrailingStop CloseReason = "trailing_stop"
	CloseStopTake     CloseReason = "SL/TP"
	CloseMaxDrawdown  CloseReason = "max_drawdown"
	CloseManual       CloseReason = "manual"
)

// LadderStep is one configured averaging step before trigger prices are
// attached to it.
type LadderStep struct {
	StepPercent float64 `yaml:"step_percent" json:"step_percent"`
	Multiplier  float64 `yaml:"multiplier" json:"multiplier"`
}

// AveragingLevel is a ladder entry with its trigger price resolved against
// the position entry. Levels are consumed in ascending distance order;
// Filled flips exactly once.
type AveragingLevel struct {
	Level      int     `json:"level"`
	Price      float64 `json:"price"`
	StepPct    float64 `json:"step_pct"`
	Multiplier float64 `json:"multiplier"`
	Filled     bool    `json:"filled"`
}

// ExchangePosition is a position as reported by the exchange. The engine does
// not reconcile its own state against it; it only feeds the connectivity
// probe and the status surface.
type ExchangePosition struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Leverage      int     `json:"leverage"`
}
