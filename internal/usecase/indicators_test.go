package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.True(t, math.IsNaN(out[0]))
	require.True(t, math.IsNaN(out[1]))
	require.InDelta(t, 2.0, out[2], 1e-9)
	require.InDelta(t, 3.0, out[3], 1e-9)
	require.InDelta(t, 4.0, out[4], 1e-9)

	// not enough data
	out = SMA([]float64{1, 2}, 3)
	for _, v := range out {
		require.True(t, math.IsNaN(v))
	}
}

func TestEMA(t *testing.T) {
	out := EMA([]float64{1, 2, 3, 4, 5}, 3)
	require.True(t, math.IsNaN(out[1]))
	// seeded with the SMA of the first period
	require.InDelta(t, 2.0, out[2], 1e-9)
	require.InDelta(t, 3.0, out[3], 1e-9)
	require.InDelta(t, 4.0, out[4], 1e-9)
}

func TestRSIExtremes(t *testing.T) {
	// monotonically rising closes pin RSI at 100
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i + 1)
	}
	out := RSI(rising, 14)
	require.InDelta(t, 100.0, last(out), 1e-9)

	// monotonically falling closes pin it at 0
	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = float64(40 - i)
	}
	out = RSI(falling, 14)
	require.InDelta(t, 0.0, last(out), 1e-9)
}

func TestBollingerBands(t *testing.T) {
	closes := []float64{2, 4, 6, 8, 10}
	upper, middle, lower := Bollinger(closes, 5, 2.0)

	require.InDelta(t, 6.0, middle[4], 1e-9)
	sd := math.Sqrt(8.0) // population stddev of the series
	require.InDelta(t, 6.0+2*sd, upper[4], 1e-9)
	require.InDelta(t, 6.0-2*sd, lower[4], 1e-9)
	require.True(t, math.IsNaN(upper[3]))
}

func TestATRConstantRange(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 101
		lows[i] = 99
		closes[i] = 100
	}
	out := ATR(highs, lows, closes, 14)
	require.InDelta(t, 2.0, last(out), 1e-9)
}

func TestVolumeRatio(t *testing.T) {
	out := VolumeRatio([]float64{10, 10, 10, 20}, 2)
	// 20 against an average of 15
	require.InDelta(t, 20.0/15.0, last(out), 1e-9)
}

func TestMACDAlignment(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	macd, signalLine, hist := MACD(closes, 12, 26, 9)
	require.Len(t, macd, 60)
	require.True(t, math.IsNaN(macd[24]))
	require.False(t, math.IsNaN(macd[25]))
	require.False(t, math.IsNaN(last(signalLine)))
	require.InDelta(t, last(macd)-last(signalLine), last(hist), 1e-9)
}
