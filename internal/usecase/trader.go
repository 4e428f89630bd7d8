package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/metrics"
)

// VolatilitySource supplies the latest volatility value per symbol for the
// trailing stop's volatility mode.
type VolatilitySource interface {
	LastATR(symbol string) float64
}

// TraderService runs the decision and lifecycle engine: it consults the
// signal evaluator per symbol, opens and sizes positions, attaches
// protective pricing, and walks every open position through the trailing /
// SL-TP / drawdown / averaging pipeline each tick.
//
// The live position map and statistics are shared between the loop goroutine
// and foreground commands; one coarse mutex guards them. Exchange calls are
// made outside the lock.
type TraderService struct {
	exchange  domain.Exchange
	executor  *OrderExecutor
	risk      *RiskCalculator
	allocator *Allocator
	signals   domain.SignalEvaluator
	notifier  domain.Notifier
	trades    domain.TradeRepository
	vol       VolatilitySource
	logger    *zap.Logger
	settings  Settings

	mu             sync.Mutex
	positions      map[string]*Position
	stats          map[string]*domain.PairStats
	lastPrices     map[string]float64
	initialBalance float64
	totalRealized  float64

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewTraderService(
	exchange domain.Exchange,
	signals domain.SignalEvaluator,
	notifier domain.Notifier,
	trades domain.TradeRepository,
	vol VolatilitySource,
	settings Settings,
	logger *zap.Logger,
) *TraderService {
	return &TraderService{
		exchange:   exchange,
		executor:   NewOrderExecutor(exchange, logger, settings.SignalsOnly),
		risk:       NewRiskCalculator(),
		allocator:  NewAllocator(settings.Portfolio.MaxPositions),
		signals:    signals,
		notifier:   notifier,
		trades:     trades,
		vol:        vol,
		logger:     logger,
		settings:   settings,
		positions:  make(map[string]*Position),
		stats:      make(map[string]*domain.PairStats),
		lastPrices: make(map[string]float64),
	}
}

func (s *TraderService) Settings() Settings {
	return s.settings
}

func (s *TraderService) notify(message string, severity domain.Severity) {
	if s.notifier != nil {
		s.notifier.Notify(message, severity)
	}
}

// StartLoop launches the control loop in the background. No-op when already
// running.
func (s *TraderService) StartLoop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	interval := s.settings.Interval
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		defer close(s.done)
		s.logger.Info("Trading loop started",
			zap.Duration("interval", interval),
			zap.Strings("symbols", s.settings.Symbols),
			zap.Bool("signals_only", s.settings.SignalsOnly))
		for {
			select {
			case <-s.stop:
				s.logger.Info("Trading loop stopped")
				return
			default:
			}

			s.RunOnce(context.Background())

			select {
			case <-s.stop:
				s.logger.Info("Trading loop stopped")
				return
			case <-time.After(interval):
			}
		}
	}()
}

// StopLoop requests a cooperative stop. The flag is observed at the top of
// the next tick; an in-flight retry sleep finishes first, so stop latency is
// bounded by one retry interval.
func (s *TraderService) StopLoop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
}

func (s *TraderService) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// RunOnce executes a single tick: one signal/entry pass over every tracked
// symbol, then maintenance of all open positions. A panic inside the tick is
// contained here; only an explicit stop terminates the loop.
func (s *TraderService) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TickError()
			s.logger.Error("Tick panicked", zap.Any("panic", r))
			s.notify(fmt.Sprintf("⚠️ tick failed: %v", r), domain.SeverityError)
		}
	}()

	for _, symbol := range s.settings.Symbols {
		s.processSymbol(ctx, symbol)
	}
	s.managePositions(ctx)
}

// processSymbol runs the entry half of the tick for one symbol. Failures are
// isolated: they end processing for this symbol only.
func (s *TraderService) processSymbol(ctx context.Context, symbol string) {
	signal, err := s.signals.SignalFor(ctx, symbol, s.settings.Timeframe)
	if err != nil {
		metrics.TickError()
		s.logger.Error("Signal evaluation failed", zap.String("symbol", symbol), zap.Error(err))
		if errors.Is(err, domain.ErrExchangeUnavailable) {
			s.notify(fmt.Sprintf("⚠️ %s: exchange unavailable during signal evaluation", symbol), domain.SeverityError)
		}
		return
	}
	if !signal.Directional() || !s.canOpenPosition(symbol) {
		return
	}
	s.executeSignal(ctx, symbol, signal)
}

func (s *TraderService) canOpenPosition(symbol string) bool {
	s.mu.Lock()
	_, exists := s.positions[symbol]
	s.mu.Unlock()
	return !exists && s.allocator.CanOpen(symbol)
}

// executeSignal opens a position for a directional signal: size from free
// balance (respecting the capital mode), submit the entry order, attach
// SL/TP, ladder and trailing stop, and register the position.
func (s *TraderService) executeSignal(ctx context.Context, symbol string, signal domain.Signal) bool {
	params := s.settings.ParamsFor(symbol)
	side := signal.Side()

	balance, err := s.exchange.FetchBalance(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch balance", zap.String("symbol", symbol), zap.Error(err))
		s.notify("⚠️ failed to fetch balance", domain.SeverityError)
		return false
	}
	if balance.Free <= 0 {
		s.notify(fmt.Sprintf("⚠️ %s: insufficient funds for a new position", symbol), domain.SeverityError)
		return false
	}

	ticker, err := s.exchange.FetchTicker(ctx, symbol)
	if err != nil || ticker.LastPrice <= 0 {
		s.logger.Error("Failed to fetch ticker", zap.String("symbol", symbol), zap.Error(err))
		return false
	}
	entryPrice := ticker.LastPrice

	// Budget for sizing: pool mode subtracts capital locked by all other
	// open positions, read in one consistent snapshot under the lock.
	budget := balance.Free
	s.mu.Lock()
	if s.initialBalance <= 0 {
		s.initialBalance = balance.Free
	}
	if s.settings.Portfolio.CapitalMode == CapitalPool {
		for _, p := range s.positions {
			budget -= p.LockedCapital
		}
	}
	s.mu.Unlock()

	amount := s.risk.PositionSize(budget, params.RiskPercent, params.Leverage, entryPrice)
	if amount <= 0 {
		s.logger.Warn("Computed position size is zero",
			zap.String("symbol", symbol), zap.Float64("budget", budget))
		return false
	}

	var order *domain.Order
	if s.settings.Entry.Mode == EntryLimit {
		limitPrice := entryPrice * (1 + s.settings.Entry.LimitDeviationPct/100.0)
		order = s.executor.PlaceLimitOrderWithRetry(ctx, symbol, side.EntrySide(), amount, limitPrice,
			s.settings.Entry.LimitMaxAttempts, s.settings.Entry.LimitInterval, s.settings.Entry.FallbackToMarket)
	} else {
		order = s.executor.PlaceOrder(ctx, symbol, side.EntrySide(), amount, domain.OrderTypeMarket, 0)
	}
	if order == nil {
		return false
	}

	s.executor.SetStopLossTakeProfit(ctx, symbol, side, entryPrice, params.StopLossPct, params.TakeProfitPct, amount)

	var ladder []*domain.AveragingLevel
	if s.settings.Averaging.Enabled {
		ladder = s.risk.BuildLadder(entryPrice, s.settings.Averaging.Steps, side.IsLong())
	}

	var trailing *TrailingStop
	if s.settings.Trailing.Enabled {
		t := s.settings.Trailing
		trailing = NewTrailingStop(t.ActivationPct, t.StepPct, t.OffsetPct, t.Mode, t.VolMultiplier)
		trailing.Arm(entryPrice)
	}

	maxDD := s.settings.Averaging.MaxDrawdownPct
	if params.MaxDrawdownPct > 0 {
		maxDD = params.MaxDrawdownPct
	}

	pos := &Position{
		PositionID:     order.ID,
		Symbol:         symbol,
		Side:           side,
		EntryPrice:     entryPrice,
		AverageEntry:   entryPrice,
		TotalAmount:    amount,
		BaseAmount:     amount,
		StopLoss:       s.risk.StopLossPrice(entryPrice, params.StopLossPct, side.IsLong()),
		TakeProfit:     s.risk.TakeProfitPrice(entryPrice, params.TakeProfitPct, side.IsLong()),
		MaxDrawdownPct: maxDD,
		Ladder:         ladder,
		Trailing:       trailing,
		LockedCapital:  entryPrice * amount / math.Max(params.Leverage, 1),
		OpenedAt:       time.Now(),
	}

	s.mu.Lock()
	s.positions[symbol] = pos
	st := s.ensureStatsLocked(symbol)
	st.LastOpenPnL = 0
	openCount := len(s.positions)
	s.mu.Unlock()

	s.allocator.Reserve(symbol)
	metrics.SetOpenPositions(openCount)
	s.saveTrade(ctx, order)

	s.logger.Info("Position opened",
		zap.String("symbol", symbol), zap.String("side", string(side)),
		zap.Float64("entry", entryPrice), zap.Float64("amount", amount),
		zap.Int("ladder_levels", len(ladder)), zap.Bool("trailing", trailing != nil))
	s.notify(fmt.Sprintf("✅ OPENED %s %s\nprice: %.8f\namount: %.8f", symbol, side, entryPrice, amount),
		domain.SeverityTrade)
	return true
}

// managePositions re-evaluates every open position against, in priority
// order: trailing stop, SL/TP, the drawdown breaker, and the next averaging
// level. The first matching condition wins; at most one action fires per
// position per tick.
func (s *TraderService) managePositions(ctx context.Context) {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	for _, symbol := range symbols {
		ticker, err := s.exchange.FetchTicker(ctx, symbol)
		if err != nil || ticker.LastPrice <= 0 {
			metrics.TickError()
			s.logger.Error("Failed to fetch ticker for open position",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		s.managePosition(ctx, symbol, ticker.LastPrice)
	}
}

func (s *TraderService) managePosition(ctx context.Context, symbol string, price float64) {
	var volValue float64
	if s.vol != nil && s.settings.Trailing.Mode == TrailingVolatility {
		volValue = s.vol.LastATR(symbol)
	}

	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.lastPrices[symbol] = price
	s.ensureStatsLocked(symbol).LastOpenPnL = pos.UnrealizedPnL(price)

	// Trailing is advanced exactly once per tick, then checked.
	if pos.Trailing != nil {
		if stop, moved := pos.Trailing.Update(price, pos.Side.IsLong(), volValue); moved {
			s.logger.Info("Trailing stop moved",
				zap.String("symbol", symbol), zap.Float64("stop", stop))
		}
		if pos.Trailing.ShouldStop(price, pos.Side.IsLong()) {
			s.mu.Unlock()
			s.closePosition(ctx, symbol, domain.CloseTrailingStop, price)
			return
		}
	}

	if pos.HitStopOrTake(price) {
		s.mu.Unlock()
		s.closePosition(ctx, symbol, domain.CloseStopTake, price)
		return
	}

	if pos.MaxDrawdownPct > 0 && pos.DrawdownFromEntry(price) >= pos.MaxDrawdownPct {
		s.mu.Unlock()
		s.closePosition(ctx, symbol, domain.CloseMaxDrawdown, price)
		return
	}

	next := pos.NextUnfilledLevel()
	if next == nil || !pos.LevelTriggered(next, price) {
		s.mu.Unlock()
		return
	}
	fillAmount := pos.BaseAmount * next.Multiplier
	side := pos.Side.EntrySide()
	s.mu.Unlock()

	order := s.executor.PlaceOrder(ctx, symbol, side, fillAmount, domain.OrderTypeMarket, 0)
	if order == nil {
		// Level stays unfilled; it will trigger again next tick.
		return
	}

	s.mu.Lock()
	pos, ok = s.positions[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}
	next.Filled = true
	pos.ApplyFill(price, fillAmount)
	avg := pos.AverageEntry
	s.mu.Unlock()

	s.saveTrade(ctx, order)
	s.logger.Info("Averaging fill",
		zap.String("symbol", symbol), zap.Int("level", next.Level),
		zap.Float64("price", price), zap.Float64("amount", fillAmount),
		zap.Float64("new_average", avg))
	s.notify(fmt.Sprintf("🔄 AVERAGED %s\nlevel: %d\nprice: %.8f\namount: %.8f\nnew average: %.8f",
		symbol, next.Level, price, fillAmount, avg), domain.SeverityTrade)
}

// closePosition removes the position, books realized PnL into per-symbol
// statistics, frees the allocator slot and persists the closed deal.
func (s *TraderService) closePosition(ctx context.Context, symbol string, reason domain.CloseReason, price float64) {
	// Claim the position under the lock before any exchange call, so a
	// foreground close racing the loop cannot close it twice.
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.positions, symbol)
	s.mu.Unlock()

	if pos.TotalAmount > 0 {
		s.executor.PlaceOrder(ctx, symbol, pos.Side.CloseSide(), pos.TotalAmount, domain.OrderTypeMarket, 0)
	}

	pnl := pos.UnrealizedPnL(price)
	pnlPct := 0.0
	if pos.TotalAmount > 0 && pos.AverageEntry > 0 {
		pnlPct = pnl / (pos.AverageEntry * pos.TotalAmount) * 100.0
	}

	s.mu.Lock()
	st := s.ensureStatsLocked(symbol)
	st.RealizedPnL += pnl
	st.Deals++
	if pnl >= 0 {
		st.Wins++
	} else {
		st.Losses++
	}
	st.LastOpenPnL = 0
	st.PnLHistory = append(st.PnLHistory, st.RealizedPnL)
	s.totalRealized += pnl
	totalRealized := s.totalRealized
	openCount := len(s.positions)
	s.mu.Unlock()

	s.allocator.Release(symbol)
	metrics.Close(string(reason), string(pos.Side))
	metrics.SetRealizedPnL(totalRealized)
	metrics.SetOpenPositions(openCount)

	if s.trades != nil {
		history := &domain.PositionHistory{
			Symbol:       symbol,
			Side:         pos.Side,
			Size:         pos.TotalAmount,
			AverageEntry: pos.AverageEntry,
			ExitPrice:    price,
			RealizedPnL:  pnl,
			PnLPercent:   pnlPct,
			Reason:       reason,
			ClosedAt:     time.Now(),
		}
		if err := s.trades.SavePositionHistory(ctx, history); err != nil {
			s.logger.Error("Failed to persist closed position",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}

	s.logger.Info("Position closed",
		zap.String("symbol", symbol), zap.String("reason", string(reason)),
		zap.Float64("exit", price), zap.Float64("pnl", pnl), zap.Float64("pnl_pct", pnlPct))
	if pnl >= 0 {
		s.notify(fmt.Sprintf("💰 PROFIT %s (%s)\nPNL: +%.4f (+%.2f%%)\nexit: %.8f",
			symbol, reason, pnl, pnlPct, price), domain.SeverityTrade)
	} else {
		s.notify(fmt.Sprintf("📉 LOSS %s (%s)\nPNL: %.4f (%.2f%%)\nexit: %.8f",
			symbol, reason, pnl, pnlPct, price), domain.SeverityTrade)
	}
	if reason == domain.CloseMaxDrawdown {
		s.notify(fmt.Sprintf("🛑 MAX DRAWDOWN %s\nposition force-closed at %.8f", symbol, price),
			domain.SeverityError)
	}
}

// ClosePosition closes a symbol's position on operator request at the latest
// market price.
func (s *TraderService) ClosePosition(ctx context.Context, symbol string) error {
	s.mu.Lock()
	_, ok := s.positions[symbol]
	price := s.lastPrices[symbol]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", symbol, domain.ErrNoPosition)
	}

	if ticker, err := s.exchange.FetchTicker(ctx, symbol); err == nil && ticker.LastPrice > 0 {
		price = ticker.LastPrice
	}
	if price <= 0 {
		return fmt.Errorf("%s: no price available for manual close", symbol)
	}
	s.closePosition(ctx, symbol, domain.CloseManual, price)
	return nil
}

func (s *TraderService) saveTrade(ctx context.Context, order *domain.Order) {
	if s.trades == nil || order == nil {
		return
	}
	if err := s.trades.SaveTrade(ctx, order); err != nil {
		s.logger.Error("Failed to persist trade", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *TraderService) ensureStatsLocked(symbol string) *domain.PairStats {
	st, ok := s.stats[symbol]
	if !ok {
		st = &domain.PairStats{PnLHistory: []float64{0}}
		s.stats[symbol] = st
	}
	return st
}

// UpdatePrice records a streamed price for the status surface and keeps the
// open-PnL statistic fresh between ticks. It does not drive trade decisions.
func (s *TraderService) UpdatePrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPrices[symbol] = price
	if pos, ok := s.positions[symbol]; ok {
		s.ensureStatsLocked(symbol).LastOpenPnL = pos.UnrealizedPnL(price)
	}
}

func (s *TraderService) LastPrice(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrices[symbol]
}

// Positions returns copies of all live positions.
func (s *TraderService) Positions() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		cp := *p
		if p.Trailing != nil {
			t := *p.Trailing
			cp.Trailing = &t
		}
		if p.Ladder != nil {
			cp.Ladder = make([]*domain.AveragingLevel, len(p.Ladder))
			for i, lvl := range p.Ladder {
				l := *lvl
				cp.Ladder[i] = &l
			}
		}
		out = append(out, cp)
	}
	return out
}

// Statistics returns a copy of per-symbol realized statistics.
func (s *TraderService) Statistics() map[string]domain.PairStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.PairStats, len(s.stats))
	for sym, st := range s.stats {
		cp := *st
		cp.PnLHistory = append([]float64(nil), st.PnLHistory...)
		out[sym] = cp
	}
	return out
}

// BalanceCurve returns the cumulative realized PnL series for one symbol, or
// the element-wise sum across all symbols when symbol is empty.
func (s *TraderService) BalanceCurve(symbol string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if symbol != "" {
		if st, ok := s.stats[symbol]; ok {
			return append([]float64(nil), st.PnLHistory...)
		}
		return []float64{0}
	}

	maxLen := 1
	for _, st := range s.stats {
		if len(st.PnLHistory) > maxLen {
			maxLen = len(st.PnLHistory)
		}
	}
	totals := make([]float64, maxLen)
	for _, st := range s.stats {
		for i := 1; i < maxLen; i++ {
			hist := st.PnLHistory
			if i < len(hist) {
				totals[i] += hist[i]
			} else if len(hist) > 0 {
				totals[i] += hist[len(hist)-1]
			}
		}
	}
	return totals
}

// ProbeExchange checks connectivity by fetching the account balance.
func (s *TraderService) ProbeExchange(ctx context.Context) (*domain.Balance, error) {
	return s.exchange.FetchBalance(ctx)
}

func (s *TraderService) InitialBalance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialBalance
}

// OpenPositionCount is used by the status surface and tests.
func (s *TraderService) OpenPositionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}
