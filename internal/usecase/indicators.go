package usecase

import "math"

// Technical indicators over candle close series. Results are aligned with
// the input: index i holds the indicator value for closes[:i+1], NaN until
// enough data exists.

func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 || len(values) < period {
		return out
	}

	var sma float64
	for i := 0; i < period; i++ {
		sma += values[i]
	}
	sma /= float64(period)
	out[period-1] = sma

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = out[i-1] + (values[i]-out[i-1])*k
	}
	return out
}

// RSI uses Wilder's smoothing over gains and losses.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period < 1 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line and histogram.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, hist []float64) {
	n := len(closes)
	macd, signalLine, hist = nanSlice(n), nanSlice(n), nanSlice(n)
	if fast < 1 || slow <= fast || signal < 1 || n < slow {
		return
	}

	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	diff := make([]float64, 0, n-slow+1)
	for i := slow - 1; i < n; i++ {
		macd[i] = fastEMA[i] - slowEMA[i]
		diff = append(diff, macd[i])
	}

	sig := EMA(diff, signal)
	for i, v := range sig {
		idx := slow - 1 + i
		signalLine[idx] = v
		if !math.IsNaN(v) {
			hist[idx] = macd[idx] - v
		}
	}
	return
}

// Bollinger returns the upper, middle and lower bands.
func Bollinger(closes []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	n := len(closes)
	upper, lower = nanSlice(n), nanSlice(n)
	middle = SMA(closes, period)
	if period < 2 || n < period {
		return
	}

	for i := period - 1; i < n; i++ {
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - middle[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = middle[i] + stdDev*sd
		lower[i] = middle[i] - stdDev*sd
	}
	return
}

// VolumeRatio is current volume over its moving average.
func VolumeRatio(volumes []float64, period int) []float64 {
	out := nanSlice(len(volumes))
	avg := SMA(volumes, period)
	for i := range volumes {
		if !math.IsNaN(avg[i]) && avg[i] > 0 {
			out[i] = volumes[i] / avg[i]
		}
	}
	return out
}

// ATR is the average true range with Wilder's smoothing over high/low/close.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period < 1 || n <= period || len(highs) != n || len(lows) != n {
		return out
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
