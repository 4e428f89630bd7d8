package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newPercentTrailing() *TrailingStop {
	// activate at 1% profit, 0.8% offset from the extreme, 0.5% hysteresis
	t := NewTrailingStop(1.0, 0.5, 0.8, TrailingPercent, 0)
	t.Arm(100)
	return t
}

func TestTrailingActivation(t *testing.T) {
	ts := newPercentTrailing()

	// below the activation threshold nothing happens
	_, moved := ts.Update(100.5, true, 0)
	require.False(t, moved)
	require.False(t, ts.Activated)
	require.False(t, ts.ShouldStop(99, true))

	// 2% profit activates and places the first stop
	stop, moved := ts.Update(102, true, 0)
	require.True(t, moved)
	require.True(t, ts.Activated)
	require.InDelta(t, 102*0.992, stop, 1e-9)
}

func TestTrailingRatchet(t *testing.T) {
	ts := newPercentTrailing()

	ts.Update(102, true, 0)
	firstStop := ts.CurrentStop

	// a new extreme far enough away moves the stop
	stop, moved := ts.Update(103, true, 0)
	require.True(t, moved)
	require.Greater(t, stop, firstStop)
	require.InDelta(t, 103*0.992, stop, 1e-9)

	// a tiny improvement is swallowed by the hysteresis step
	_, moved = ts.Update(103.2, true, 0)
	require.False(t, moved)
	require.InDelta(t, 103*0.992, ts.CurrentStop, 1e-9)

	// price falling back never lowers the stop
	_, moved = ts.Update(101, true, 0)
	require.False(t, moved)
	require.InDelta(t, 103*0.992, ts.CurrentStop, 1e-9)
}

func TestTrailingShouldStop(t *testing.T) {
	ts := newPercentTrailing()
	ts.Update(103, true, 0)

	require.False(t, ts.ShouldStop(103, true))
	require.True(t, ts.ShouldStop(102.0, true))
	require.True(t, ts.ShouldStop(ts.CurrentStop, true))
}

func TestTrailingShort(t *testing.T) {
	ts := newPercentTrailing()

	stop, moved := ts.Update(98, false, 0)
	require.True(t, moved)
	require.True(t, ts.Activated)
	require.InDelta(t, 98*1.008, stop, 1e-9)

	stop, moved = ts.Update(97, false, 0)
	require.True(t, moved)
	require.InDelta(t, 97*1.008, stop, 1e-9)

	// price rising back never raises the stop for a short
	_, moved = ts.Update(97.5, false, 0)
	require.False(t, moved)

	require.True(t, ts.ShouldStop(98, false))
	require.False(t, ts.ShouldStop(97, false))
}

func TestTrailingVolatilityMode(t *testing.T) {
	ts := NewTrailingStop(1.0, 0.5, 0.8, TrailingVolatility, 2.0)
	ts.Arm(100)

	// stop trails the extreme by ATR * multiplier
	stop, moved := ts.Update(102, true, 1.5)
	require.True(t, moved)
	require.InDelta(t, 102-3.0, stop, 1e-9)

	// without a volatility value it falls back to the percent offset
	ts2 := NewTrailingStop(1.0, 0.5, 0.8, TrailingVolatility, 2.0)
	ts2.Arm(100)
	stop, moved = ts2.Update(102, true, 0)
	require.True(t, moved)
	require.InDelta(t, 102*0.992, stop, 1e-9)
}

func TestTrailingIgnoresBadInput(t *testing.T) {
	ts := newPercentTrailing()
	_, moved := ts.Update(0, true, 0)
	require.False(t, moved)
	_, moved = ts.Update(-5, true, 0)
	require.False(t, moved)
}
