package domain

import "time"

// PairStats accumulates realized results per symbol. PnLHistory is the
// cumulative realized PnL after each closed deal, starting at zero.
type PairStats struct {
	RealizedPnL float64   `json:"realized_pnl"`
	Deals       int       `json:"deals"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	LastOpenPnL float64   `json:"open_pnl"`
	PnLHistory  []float64 `json:"pnl_history"`
}

func (s *PairStats) Winrate() float64 {
	if s.Deals == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Deals) * 100.0
}

// PositionHistory is a closed position as persisted for reporting.
type PositionHistory struct {
	ID           int64       `json:"id"`
	Symbol       string      `json:"symbol"`
	Side         Side        `json:"side"`
	Size         float64     `json:"size"`
	AverageEntry float64     `json:"average_entry"`
	ExitPrice    float64     `json:"exit_price"`
	RealizedPnL  float64     `json:"realized_pnl"`
	PnLPercent   float64     `json:"pnl_percent"`
	Reason       CloseReason `json:"reason"`
	ClosedAt     time.Time   `json:"closed_at"`
}
