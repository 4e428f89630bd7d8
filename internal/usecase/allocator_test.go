package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorCapacity(t *testing.T) {
	a := NewAllocator(2)

	require.True(t, a.CanOpen("BTCUSDT"))
	a.Reserve("BTCUSDT")
	require.True(t, a.CanOpen("ETHUSDT"))
	a.Reserve("ETHUSDT")

	// capacity exhausted
	require.False(t, a.CanOpen("SOLUSDT"))
	// a symbol holding a slot cannot double-open
	require.False(t, a.CanOpen("BTCUSDT"))

	a.Release("BTCUSDT")
	require.True(t, a.CanOpen("SOLUSDT"))
	require.Equal(t, 1, a.ActiveCount())
}

func TestAllocatorIdempotent(t *testing.T) {
	a := NewAllocator(3)

	a.Reserve("BTCUSDT")
	a.Reserve("BTCUSDT")
	require.Equal(t, 1, a.ActiveCount())

	a.Release("BTCUSDT")
	a.Release("BTCUSDT")
	require.Equal(t, 0, a.ActiveCount())
	a.Release("NEVERSEEN")
	require.Equal(t, 0, a.ActiveCount())
}

func TestAllocatorClamping(t *testing.T) {
	require.Equal(t, 1, NewAllocator(0).MaxPositions())
	require.Equal(t, 1, NewAllocator(-4).MaxPositions())
	require.Equal(t, 50, NewAllocator(500).MaxPositions())
	require.Equal(t, 10, NewAllocator(10).MaxPositions())
}
