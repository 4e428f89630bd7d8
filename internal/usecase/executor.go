package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/metrics"
)

// OrderExecutor submits orders to the exchange. Submission failures are
// absorbed and reported as a nil order; nothing here may crash a tick.
// In signals-only mode all exchange submission is suppressed and a
// synthetic order is returned so the decision path runs unchanged.
type OrderExecutor struct {
	exchange    domain.Exchange
	risk        *RiskCalculator
	logger      *zap.Logger
	signalsOnly bool
}

func NewOrderExecutor(exchange domain.Exchange, logger *zap.Logger, signalsOnly bool) *OrderExecutor {
	return &OrderExecutor{
		exchange:    exchange,
		risk:        NewRiskCalculator(),
		logger:      logger,
		signalsOnly: signalsOnly,
	}
}

func (e *OrderExecutor) mode() string {
	if e.signalsOnly {
		return "paper"
	}
	return "live"
}

func (e *OrderExecutor) syntheticOrder(symbol string, side domain.OrderSide, amount, price float64, typ domain.OrderType) *domain.Order {
	return &domain.Order{
		ID:        "signal-" + uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Amount:    amount,
		Price:     price,
		CreatedAt: time.Now(),
	}
}

// PlaceOrder submits a market or limit order. Returns nil on any failure.
func (e *OrderExecutor) PlaceOrder(ctx context.Context, symbol string, side domain.OrderSide, amount float64, typ domain.OrderType, price float64) *domain.Order {
	if e.signalsOnly {
		metrics.Order(e.mode(), string(side), string(typ))
		return e.syntheticOrder(symbol, side, amount, price, typ)
	}

	var (
		order *domain.Order
		err   error
	)
	if typ == domain.OrderTypeLimit {
		order, err = e.exchange.CreateLimitOrder(ctx, symbol, side, amount, price)
	} else {
		order, err = e.exchange.CreateMarketOrder(ctx, symbol, side, amount)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			e.logger.Warn("Order rejected: insufficient funds",
				zap.String("symbol", symbol), zap.String("side", string(side)))
		} else {
			e.logger.Error("Failed to place order",
				zap.String("symbol", symbol), zap.String("side", string(side)),
				zap.String("type", string(typ)), zap.Error(err))
		}
		return nil
	}

	metrics.Order(e.mode(), string(side), string(typ))
	e.logger.Info("Order placed",
		zap.String("symbol", symbol), zap.String("side", string(side)),
		zap.String("type", string(typ)), zap.Float64("amount", amount))
	return order
}

// PlaceLimitOrderWithRetry submits a limit order and polls until it fills.
// Each attempt: submit, wait interval, check open orders; if the order is no
// longer open it is treated as filled. If still open it is cancelled, the
// price is refreshed from the ticker, and the next attempt begins.
// maxAttempts == 0 retries forever. On exhaustion a single market order is
// submitted when fallbackToMarket is set, otherwise the entry fails.
func (e *OrderExecutor) PlaceLimitOrderWithRetry(ctx context.Context, symbol string, side domain.OrderSide, amount, price float64, maxAttempts int, interval time.Duration, fallbackToMarket bool) *domain.Order {
	if e.signalsOnly {
		metrics.Order(e.mode(), string(side), string(domain.OrderTypeLimit))
		return e.syntheticOrder(symbol, side, amount, price, domain.OrderTypeLimit)
	}
	if interval < time.Second {
		interval = time.Second
	}

	retryWait := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
	}

	attempts := 0
	for maxAttempts == 0 || attempts < maxAttempts {
		attempts++

		order := e.PlaceOrder(ctx, symbol, side, amount, domain.OrderTypeLimit, price)
		if order == nil {
			if !sleepCtx(ctx, retryWait.Duration()) {
				return nil
			}
			continue
		}
		retryWait.Reset()

		if !sleepCtx(ctx, interval) {
			return nil
		}

		openOrders, err := e.exchange.FetchOpenOrders(ctx, symbol)
		if err != nil {
			// Can't tell whether it filled; assume it did rather than
			// cancel an order we cannot see.
			e.logger.Warn("Failed to poll open orders, assuming fill",
				zap.String("symbol", symbol), zap.String("order_id", order.ID), zap.Error(err))
			return order
		}

		stillOpen := false
		for _, o := range openOrders {
			if o.ID == order.ID {
				stillOpen = true
				break
			}
		}
		if !stillOpen {
			e.logger.Info("Limit order filled",
				zap.String("symbol", symbol), zap.String("order_id", order.ID))
			return order
		}

		e.CancelOrder(ctx, symbol, order.ID)
		if ticker, err := e.exchange.FetchTicker(ctx, symbol); err == nil && ticker.LastPrice > 0 {
			price = ticker.LastPrice
		}
		e.logger.Info("Limit order reissued",
			zap.String("symbol", symbol), zap.Int("attempt", attempts), zap.Float64("price", price))
	}

	if fallbackToMarket {
		e.logger.Warn("Limit attempts exhausted, falling back to market order",
			zap.String("symbol", symbol))
		return e.PlaceOrder(ctx, symbol, side, amount, domain.OrderTypeMarket, 0)
	}

	e.logger.Warn("Limit attempts exhausted, order not filled", zap.String("symbol", symbol))
	return nil
}

func (e *OrderExecutor) CancelOrder(ctx context.Context, symbol, orderID string) bool {
	if err := e.exchange.CancelOrder(ctx, symbol, orderID); err != nil {
		e.logger.Error("Failed to cancel order",
			zap.String("symbol", symbol), zap.String("order_id", orderID), zap.Error(err))
		return false
	}
	e.logger.Info("Order cancelled", zap.String("symbol", symbol), zap.String("order_id", orderID))
	return true
}

// SetStopLossTakeProfit places the protective stop and take-profit orders
// for a freshly opened position. Failure of either leg leaves the position
// partially protected; that degraded state is logged for the operator and
// never rolls back the open position.
func (e *OrderExecutor) SetStopLossTakeProfit(ctx context.Context, symbol string, side domain.Side, entryPrice, slPercent, tpPercent, amount float64) (*domain.Order, *domain.Order) {
	slPrice := e.risk.StopLossPrice(entryPrice, slPercent, side.IsLong())
	tpPrice := e.risk.TakeProfitPrice(entryPrice, tpPercent, side.IsLong())
	closeSide := side.CloseSide()

	if e.signalsOnly {
		return e.syntheticOrder(symbol, closeSide, amount, slPrice, domain.OrderTypeStop),
			e.syntheticOrder(symbol, closeSide, amount, tpPrice, domain.OrderTypeLimit)
	}

	slOrder, err := e.exchange.CreateStopOrder(ctx, symbol, closeSide, amount, slPrice)
	if err != nil {
		e.logger.Error("Failed to place stop-loss order, position unprotected on the downside",
			zap.String("symbol", symbol), zap.Float64("stop_price", slPrice), zap.Error(err))
		slOrder = nil
	}

	tpOrder, err := e.exchange.CreateLimitOrder(ctx, symbol, closeSide, amount, tpPrice)
	if err != nil {
		e.logger.Error("Failed to place take-profit order",
			zap.String("symbol", symbol), zap.Float64("tp_price", tpPrice), zap.Error(err))
		tpOrder = nil
	}

	e.logger.Info("Protective orders submitted",
		zap.String("symbol", symbol),
		zap.Float64("stop_loss", slPrice), zap.Float64("take_profit", tpPrice),
		zap.Bool("sl_ok", slOrder != nil), zap.Bool("tp_ok", tpOrder != nil))
	return slOrder, tpOrder
}

// sleepCtx waits d or until ctx is done; returns false when cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
