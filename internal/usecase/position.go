package usecase

import (
	"time"

	"github.com/vitos/crypto_auto_trader/internal/domain"
)

// Position is the engine's live record of an open exposure. At most one per
// symbol. Created on a successful entry, mutated in place by averaging fills
// and trailing updates, removed on close. All access goes through the
// trader's lock.
type Position struct {
	PositionID     string                   `json:"position_id"`
	Symbol         string                   `json:"symbol"`
	Side           domain.Side              `json:"side"`
	EntryPrice     float64                  `json:"entry_price"`
	AverageEntry   float64                  `json:"average_entry"`
	TotalAmount    float64                  `json:"total_amount"`
	BaseAmount     float64                  `json:"base_amount"`
	StopLoss       float64                  `json:"stop_loss"`
	TakeProfit     float64                  `json:"take_profit"`
	MaxDrawdownPct float64                  `json:"max_drawdown_pct"`
	Ladder         []*domain.AveragingLevel `json:"ladder,omitempty"`
	Trailing       *TrailingStop            `json:"trailing,omitempty"`
	LockedCapital  float64                  `json:"locked_capital"`
	OpenedAt       time.Time                `json:"opened_at"`
}

// ApplyFill blends an averaging fill into the volume-weighted average entry.
func (p *Position) ApplyFill(fillPrice, fillAmount float64) {
	newAmount := p.TotalAmount + fillAmount
	if newAmount <= 0 {
		return
	}
	p.AverageEntry = (p.AverageEntry*p.TotalAmount + fillPrice*fillAmount) / newAmount
	p.TotalAmount = newAmount
}

// NextUnfilledLevel returns the next ladder level to consume, or nil. The
// ladder is ordered by ascending distance, so the first unfilled entry is
// always the next trigger.
func (p *Position) NextUnfilledLevel() *domain.AveragingLevel {
	for _, lvl := range p.Ladder {
		if !lvl.Filled {
			return lvl
		}
	}
	return nil
}

// UnrealizedPnL values the position against the average entry.
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p.Side.IsLong() {
		return (price - p.AverageEntry) * p.TotalAmount
	}
	return (p.AverageEntry - price) * p.TotalAmount
}

// DrawdownFromEntry is the unfavorable move from the initial entry price in
// percent. Positive values are losses.
func (p *Position) DrawdownFromEntry(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	if p.Side.IsLong() {
		return (p.EntryPrice - price) / p.EntryPrice * 100.0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100.0
}

// HitStopOrTake reports whether price crossed the fixed SL or TP threshold.
func (p *Position) HitStopOrTake(price float64) bool {
	if p.Side.IsLong() {
		return price <= p.StopLoss || price >= p.TakeProfit
	}
	return price >= p.StopLoss || price <= p.TakeProfit
}

// LevelTriggered reports whether price crossed an averaging level trigger.
func (p *Position) LevelTriggered(lvl *domain.AveragingLevel, price float64) bool {
	if p.Side.IsLong() {
		return price <= lvl.Price
	}
	return price >= lvl.Price
}
