package usecase

import (
	"math"
	"sort"

	"github.com/vitos/crypto_auto_trader/internal/domain"
)

// RiskCalculator computes position sizes, protective prices and averaging
// ladders. All methods are stateless and never panic on bad input.
type RiskCalculator struct{}

func NewRiskCalculator() *RiskCalculator {
	return &RiskCalculator{}
}

// PositionSize returns the quantity to buy for the given balance share.
// Returns 0 if balance or price is not positive.
func (RiskCalculator) PositionSize(balance, riskPercent, leverage, price float64) float64 {
	if balance <= 0 || price <= 0 {
		return 0
	}
	riskFraction := math.Max(riskPercent, 0) / 100.0
	notional := balance * riskFraction * math.Max(leverage, 1)
	return math.Max(notional/price, 0)
}

func (RiskCalculator) StopLossPrice(entry, percent float64, isLong bool) float64 {
	p := math.Max(percent, 0) / 100.0
	if isLong {
		return entry * (1 - p)
	}
	return entry * (1 + p)
}

func (RiskCalculator) TakeProfitPrice(entry, percent float64, isLong bool) float64 {
	p := math.Max(percent, 0) / 100.0
	if isLong {
		return entry * (1 + p)
	}
	return entry * (1 - p)
}

// MaxDrawdownExceeded reports whether the balance has fallen from its initial
// value by at least the threshold percent.
func (RiskCalculator) MaxDrawdownExceeded(currentBalance, initialBalance, thresholdPercent float64) bool {
	if initialBalance <= 0 {
		return false
	}
	dd := (initialBalance - currentBalance) / initialBalance * 100.0
	return dd >= math.Max(thresholdPercent, 0)
}

// ValidateLadder checks an averaging ladder definition: steps must be
// distinct, nonzero, share one sign and be ordered by non-decreasing
// distance from entry. An empty ladder is valid. Any violation invalidates
// the whole ladder; it is never silently repaired.
func (RiskCalculator) ValidateLadder(steps []domain.LadderStep) bool {
	if len(steps) == 0 {
		return true
	}

	seen := make(map[float64]struct{}, len(steps))
	for _, s := range steps {
		if _, dup := seen[s.StepPercent]; dup {
			return false
		}
		seen[s.StepPercent] = struct{}{}
	}

	firstSign := sign(steps[0].StepPercent)
	if firstSign == 0 {
		return false
	}
	prevAbs := 0.0
	for _, s := range steps {
		if s.StepPercent == 0 || sign(s.StepPercent) != firstSign {
			return false
		}
		abs := math.Abs(s.StepPercent)
		if abs < prevAbs {
			return false
		}
		prevAbs = abs
	}
	return true
}

// BuildLadder resolves configured steps into trigger levels for a position.
// Step signs are forced to the unfavorable direction for the side (long:
// below entry, short: above), and levels are sorted by ascending distance.
// Deterministic: the same inputs always produce the same ladder.
func (RiskCalculator) BuildLadder(entry float64, steps []domain.LadderStep, isLong bool) []*domain.AveragingLevel {
	if entry <= 0 || len(steps) == 0 {
		return nil
	}

	levels := make([]*domain.AveragingLevel, 0, len(steps))
	for i, s := range steps {
		step := s.StepPercent
		if isLong && step > 0 {
			step = -step
		}
		if !isLong && step < 0 {
			step = math.Abs(step)
		}

		mult := s.Multiplier
		if mult == 0 {
			mult = 1
		}
		levels = append(levels, &domain.AveragingLevel{
			Level:      i + 1,
			Price:      entry * (1 + step/100.0),
			StepPct:    step,
			Multiplier: mult,
		})
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return math.Abs(levels[i].StepPct) < math.Abs(levels[j].StepPct)
	})
	return levels
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
