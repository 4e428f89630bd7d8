package domain

import "context"

// Exchange defines the interface for interacting with a crypto exchange.
// Every call fails closed: transport problems come back wrapped in
// ErrExchangeUnavailable instead of panicking or returning partial data.
type Exchange interface {
	FetchBalance(ctx context.Context) (*Balance, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, amount float64) (*Order, error)
	CreateLimitOrder(ctx context.Context, symbol string, side OrderSide, amount, price float64) (*Order, error)
	CreateStopOrder(ctx context.Context, symbol string, side OrderSide, amount, stopPrice float64) (*Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	FetchOpenOrders(ctx context.Context, symbol string) ([]*Order, error)
	FetchPositions(ctx context.Context) ([]*ExchangePosition, error)
}

// Notifier is a fire-and-forget outbound alert channel. Implementations must
// never block the caller on delivery.
type Notifier interface {
	Notify(message string, severity Severity)
}

// SignalEvaluator produces a directional signal for a symbol from its price
// history.
type SignalEvaluator interface {
	SignalFor(ctx context.Context, symbol, timeframe string) (Signal, error)
}

// TradeRepository defines storage operations for executed orders and closed
// positions. Live positions are never persisted.
type TradeRepository interface {
	SaveTrade(ctx context.Context, order *Order) error
	ListTrades(ctx context.Context, limit int) ([]*Order, error)
	SavePositionHistory(ctx context.Context, history *PositionHistory) error
	ListPositionHistory(ctx context.Context, limit int) ([]*PositionHistory, error)
}
