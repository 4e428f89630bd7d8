package domain

import "time"

// Signal is a directional recommendation produced from price history.
type Signal string

const (
	SignalLong  Signal = "long"
	SignalShort Signal = "short"
	SignalNone  Signal = "none"
)

func (s Signal) Directional() bool {
	return s == SignalLong || s == SignalShort
}

func (s Signal) Side() Side {
	if s == SignalShort {
		return SideShort
	}
	return SideLong
}

// SignalRecord is one evaluated signal, kept in a bounded in-memory log for
// the status surface.
type SignalRecord struct {
	Symbol string    `json:"symbol"`
	Signal Signal    `json:"signal"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

type Severity string

const (
	SeverityTrade Severity = "trade"
	SeverityError Severity = "error"
	SeverityInfo  Severity = "info"
)
