package usecase

import "math"

type TrailingMode string

const (
	TrailingPercent    TrailingMode = "percent"
	TrailingVolatility TrailingMode = "atr"
)

// TrailingStop ratchets a protective exit level in the position's favor.
// It activates once unrealized profit of the extreme price reaches
// ActivationPct, then moves the stop only when a candidate improves on the
// current stop by at least StepPct relatively (hysteresis against
// chattering). The instance is owned by exactly one position and is mutated
// only under the trader's lock; it carries no lock of its own.
type TrailingStop struct {
	ActivationPct float64      `json:"activation_pct"`
	StepPct       float64      `json:"step_pct"`
	OffsetPct     float64      `json:"offset_pct"`
	Mode          TrailingMode `json:"mode"`
	VolMultiplier float64      `json:"vol_multiplier"`

	EntryPrice   float64 `json:"entry_price"`
	ExtremePrice float64 `json:"extreme_price"`
	CurrentStop  float64 `json:"current_stop"`
	Activated    bool    `json:"activated"`
}

func NewTrailingStop(activationPct, stepPct, offsetPct float64, mode TrailingMode, volMultiplier float64) *TrailingStop {
	return &TrailingStop{
		ActivationPct: math.Max(activationPct, 0),
		StepPct:       math.Max(stepPct, 0),
		OffsetPct:     math.Max(offsetPct, 0),
		Mode:          mode,
		VolMultiplier: math.Max(volMultiplier, 0.1),
	}
}

// Arm sets the entry price and resets tracking state.
func (t *TrailingStop) Arm(entryPrice float64) {
	t.EntryPrice = entryPrice
	t.ExtremePrice = entryPrice
	t.Activated = false
	t.CurrentStop = 0
}

// Update advances the state machine with a new price and returns the new
// stop level when it moved. volValue is an optional volatility input (e.g.
// ATR); pass 0 to stay in percent mode.
func (t *TrailingStop) Update(price float64, isLong bool, volValue float64) (float64, bool) {
	if price <= 0 || t.EntryPrice <= 0 {
		return 0, false
	}

	if isLong {
		if price > t.ExtremePrice {
			t.ExtremePrice = price
		}
	} else if t.ExtremePrice == 0 || price < t.ExtremePrice {
		t.ExtremePrice = price
	}

	profitPct := (t.ExtremePrice - t.EntryPrice) / t.EntryPrice * 100.0
	if !isLong {
		profitPct = (t.EntryPrice - t.ExtremePrice) / t.EntryPrice * 100.0
	}
	if !t.Activated && profitPct >= t.ActivationPct {
		t.Activated = true
	}
	if !t.Activated {
		return 0, false
	}

	candidate := t.candidateStop(isLong, volValue)
	if t.CurrentStop == 0 {
		t.CurrentStop = candidate
		return t.CurrentStop, true
	}

	improved := candidate > t.CurrentStop
	if !isLong {
		improved = candidate < t.CurrentStop
	}
	if !improved {
		return 0, false
	}

	movePct := (candidate - t.CurrentStop) / t.CurrentStop * 100.0
	if !isLong {
		movePct = (t.CurrentStop - candidate) / t.CurrentStop * 100.0
	}
	if movePct >= t.StepPct {
		t.CurrentStop = candidate
		return t.CurrentStop, true
	}
	return 0, false
}

func (t *TrailingStop) candidateStop(isLong bool, volValue float64) float64 {
	if t.Mode == TrailingVolatility && volValue > 0 {
		if isLong {
			return t.ExtremePrice - volValue*t.VolMultiplier
		}
		return t.ExtremePrice + volValue*t.VolMultiplier
	}
	if isLong {
		return t.ExtremePrice * (1 - t.OffsetPct/100.0)
	}
	return t.ExtremePrice * (1 + t.OffsetPct/100.0)
}

// ShouldStop reports whether the price has crossed back through the stop.
// Only meaningful once activated.
func (t *TrailingStop) ShouldStop(price float64, isLong bool) bool {
	if !t.Activated || t.CurrentStop <= 0 {
		return false
	}
	if isLong {
		return price <= t.CurrentStop
	}
	return price >= t.CurrentStop
}
