package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/metrics"
)

const signalLogSize = 300

// IndicatorSettings configure the built-in evaluator.
type IndicatorSettings struct {
	CandleLimit     int
	RSIPeriod       int
	RSIOversold     float64
	RSIOverbought   float64
	BollingerPeriod int
	BollingerStdDev float64
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	VolumePeriod    int
	ATRPeriod       int
}

func DefaultIndicatorSettings() IndicatorSettings {
	return IndicatorSettings{
		CandleLimit:     100,
		RSIPeriod:       14,
		RSIOversold:     30,
		RSIOverbought:   70,
		BollingerPeriod: 20,
		BollingerStdDev: 2.0,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		VolumePeriod:    20,
		ATRPeriod:       14,
	}
}

// IndicatorEvaluator implements domain.SignalEvaluator with a mean-reversion
// rule: long when RSI is oversold and price sits below the lower Bollinger
// band, short on the mirror condition. Every evaluation is appended to a
// bounded signal log for the status surface.
type IndicatorEvaluator struct {
	exchange domain.Exchange
	cfg      IndicatorSettings
	logger   *zap.Logger

	mu  sync.Mutex
	log []domain.SignalRecord

	atrMu   sync.Mutex
	lastATR map[string]float64
}

func NewIndicatorEvaluator(exchange domain.Exchange, cfg IndicatorSettings, logger *zap.Logger) *IndicatorEvaluator {
	if cfg.CandleLimit <= 0 {
		cfg = DefaultIndicatorSettings()
	}
	return &IndicatorEvaluator{
		exchange: exchange,
		cfg:      cfg,
		logger:   logger,
		lastATR:  make(map[string]float64),
	}
}

func (e *IndicatorEvaluator) SignalFor(ctx context.Context, symbol, timeframe string) (domain.Signal, error) {
	candles, err := e.exchange.FetchCandles(ctx, symbol, timeframe, e.cfg.CandleLimit)
	if err != nil {
		return domain.SignalNone, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return domain.SignalNone, nil
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	rsi := last(RSI(closes, e.cfg.RSIPeriod))
	bbUpper, _, bbLower := Bollinger(closes, e.cfg.BollingerPeriod, e.cfg.BollingerStdDev)
	_, _, macdHist := MACD(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	volRatio := last(VolumeRatio(volumes, e.cfg.VolumePeriod))
	atr := last(ATR(highs, lows, closes, e.cfg.ATRPeriod))
	price := closes[len(closes)-1]

	signal := domain.SignalNone
	if !math.IsNaN(rsi) && !math.IsNaN(last(bbLower)) && !math.IsNaN(last(bbUpper)) {
		switch {
		case rsi < e.cfg.RSIOversold && price < last(bbLower):
			signal = domain.SignalLong
		case rsi > e.cfg.RSIOverbought && price > last(bbUpper):
			signal = domain.SignalShort
		}
	}

	if !math.IsNaN(atr) {
		e.atrMu.Lock()
		e.lastATR[symbol] = atr
		e.atrMu.Unlock()
	}

	e.logger.Debug("Signal evaluated",
		zap.String("symbol", symbol), zap.String("signal", string(signal)),
		zap.Float64("price", price), zap.Float64("rsi", rsi),
		zap.Float64("macd_hist", last(macdHist)), zap.Float64("volume_ratio", volRatio),
		zap.Float64("atr", atr))
	metrics.Signal(string(signal))

	e.mu.Lock()
	e.log = append(e.log, domain.SignalRecord{
		Symbol: symbol,
		Signal: signal,
		Price:  price,
		Time:   time.Now(),
	})
	if len(e.log) > signalLogSize {
		e.log = e.log[len(e.log)-signalLogSize:]
	}
	e.mu.Unlock()

	return signal, nil
}

// LastATR returns the most recent ATR computed for symbol, 0 if none. Feeds
// the volatility mode of the trailing stop.
func (e *IndicatorEvaluator) LastATR(symbol string) float64 {
	e.atrMu.Lock()
	defer e.atrMu.Unlock()
	return e.lastATR[symbol]
}

// RecentSignals returns up to n most recent signal evaluations, newest last.
func (e *IndicatorEvaluator) RecentSignals(n int) []domain.SignalRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n > len(e.log) {
		n = len(e.log)
	}
	out := make([]domain.SignalRecord, n)
	copy(out, e.log[len(e.log)-n:])
	return out
}
