package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/crypto_auto_trader/internal/domain"
)

// MockExchange is a scriptable in-memory exchange. Tests set the scalar
// fields and read back the recorded order flow.
type MockExchange struct {
	mu sync.Mutex

	Price       float64
	FreeBalance float64

	FailMarket bool
	FailLimit  bool
	BalanceErr error
	TickerErr  error

	OpenOrders    []*domain.Order
	OpenOrdersErr error

	Candles    []domain.Candle
	CandlesErr error

	Created   []*domain.Order
	Cancelled []string

	seq int
}

func (m *MockExchange) nextID() string {
	m.seq++
	return fmt.Sprintf("mock-%d", m.seq)
}

func (m *MockExchange) FetchBalance(ctx context.Context) (*domain.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	return &domain.Balance{Free: m.FreeBalance, Total: m.FreeBalance}, nil
}

func (m *MockExchange) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TickerErr != nil {
		return nil, m.TickerErr
	}
	return &domain.Ticker{Symbol: symbol, LastPrice: m.Price}, nil
}

func (m *MockExchange) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CandlesErr != nil {
		return nil, m.CandlesErr
	}
	return m.Candles, nil
}

func (m *MockExchange) SetPrice(price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Price = price
}

func (m *MockExchange) createOrder(symbol string, side domain.OrderSide, typ domain.OrderType, amount, price float64) *domain.Order {
	order := &domain.Order{
		ID:        m.nextID(),
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Amount:    amount,
		Price:     price,
		CreatedAt: time.Now(),
	}
	m.Created = append(m.Created, order)
	return order
}

func (m *MockExchange) CreateMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, amount float64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMarket {
		return nil, domain.ErrExchangeUnavailable
	}
	return m.createOrder(symbol, side, domain.OrderTypeMarket, amount, m.Price), nil
}

func (m *MockExchange) CreateLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, price float64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLimit {
		return nil, domain.ErrExchangeUnavailable
	}
	return m.createOrder(symbol, side, domain.OrderTypeLimit, amount, price), nil
}

func (m *MockExchange) CreateStopOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, stopPrice float64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createOrder(symbol, side, domain.OrderTypeStop, amount, stopPrice), nil
}

func (m *MockExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, orderID)
	return nil
}

func (m *MockExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenOrdersErr != nil {
		return nil, m.OpenOrdersErr
	}
	return m.OpenOrders, nil
}

func (m *MockExchange) FetchPositions(ctx context.Context) ([]*domain.ExchangePosition, error) {
	return nil, nil
}

// KeepOrdersOpen makes FetchOpenOrders report every created order as
// still resting, so limit retries never see a fill.
func (m *MockExchange) KeepOrdersOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenOrders = m.Created
}

// OrderTypes returns the types of all created orders in sequence.
func (m *MockExchange) OrderTypes() []domain.OrderType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.OrderType, 0, len(m.Created))
	for _, o := range m.Created {
		types = append(types, o.Type)
	}
	return types
}

type MockEvaluator struct {
	Signal domain.Signal
	Err    error
}

func (m *MockEvaluator) SignalFor(ctx context.Context, symbol, timeframe string) (domain.Signal, error) {
	return m.Signal, m.Err
}

type MockNotifier struct {
	mu       sync.Mutex
	Messages []string
	Levels   []domain.Severity
}

func (m *MockNotifier) Notify(message string, severity domain.Severity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, message)
	m.Levels = append(m.Levels, severity)
}

func (m *MockNotifier) HasSeverity(severity domain.Severity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Levels {
		if s == severity {
			return true
		}
	}
	return false
}

type MockRepo struct {
	mu     sync.Mutex
	Trades []*domain.Order
	Closed []*domain.PositionHistory
}

func (m *MockRepo) SaveTrade(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = append(m.Trades, order)
	return nil
}

func (m *MockRepo) ListTrades(ctx context.Context, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Trades, nil
}

func (m *MockRepo) SavePositionHistory(ctx context.Context, history *domain.PositionHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = append(m.Closed, history)
	return nil
}

func (m *MockRepo) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed, nil
}

type MockVol struct {
	ATR float64
}

func (m *MockVol) LastATR(symbol string) float64 {
	return m.ATR
}
