package usecase

import "sync"

const (
	minConcurrentPositions = 1
	maxConcurrentPositions = 50
)

// Allocator bounds the number of concurrently open positions across symbols.
// The symbol set mirrors the trader's live position map by construction.
type Allocator struct {
	mu           sync.Mutex
	maxPositions int
	active       map[string]struct{}
}

func NewAllocator(maxPositions int) *Allocator {
	if maxPositions < minConcurrentPositions {
		maxPositions = minConcurrentPositions
	}
	if maxPositions > maxConcurrentPositions {
		maxPositions = maxConcurrentPositions
	}
	return &Allocator{
		maxPositions: maxPositions,
		active:       make(map[string]struct{}),
	}
}

// CanOpen reports whether a new position for symbol may be opened: the
// symbol must not already hold a slot and there must be spare capacity.
func (a *Allocator) CanOpen(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, held := a.active[symbol]; held {
		return false
	}
	return len(a.active) < a.maxPositions
}

// Reserve takes a capacity slot for symbol. Idempotent.
func (a *Allocator) Reserve(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[symbol] = struct{}{}
}

// Release frees the slot held by symbol. Idempotent.
func (a *Allocator) Release(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, symbol)
}

func (a *Allocator) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

func (a *Allocator) MaxPositions() int {
	return a.maxPositions
}
