package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/domain"
)

const (
	binanceWSURL        = "wss://fstream.binance.com/ws"
	binanceTestnetWSURL = "wss://stream.binancefuture.com/ws"

	quoteAsset = "USDT"
)

// BinanceAdapter implements domain.Exchange on Binance USDT-M futures.
// Every REST failure is wrapped in domain.ErrExchangeUnavailable (or
// domain.ErrInsufficientFunds for margin rejections) so callers can fail
// closed without inspecting transport details.
type BinanceAdapter struct {
	client  *futures.Client
	logger  *zap.Logger
	wsURL   string
	qtyDP   int32
	priceDP int32

	mu         sync.Mutex
	wsConn     *websocket.Conn
	subscribed map[string]bool
	callbacks  []func(symbol string, price float64)
	wsStop     chan struct{}
}

type Option func(*BinanceAdapter)

func WithPrecision(quantityDP, priceDP int32) Option {
	return func(a *BinanceAdapter) {
		a.qtyDP = quantityDP
		a.priceDP = priceDP
	}
}

func NewBinanceAdapter(apiKey, secretKey string, testnet bool, logger *zap.Logger, opts ...Option) *BinanceAdapter {
	futures.UseTestnet = testnet
	wsURL := binanceWSURL
	if testnet {
		wsURL = binanceTestnetWSURL
	}

	a := &BinanceAdapter{
		client:     futures.NewClient(apiKey, secretKey),
		logger:     logger,
		wsURL:      wsURL,
		qtyDP:      6,
		priceDP:    8,
		subscribed: make(map[string]bool),
		wsStop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func wrapErr(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// -2019: margin insufficient, -2010: insufficient balance
		if apiErr.Code == -2019 || apiErr.Code == -2010 {
			return fmt.Errorf("%s: %w", op, domain.ErrInsufficientFunds)
		}
		return fmt.Errorf("%s: %w: code %d: %s", op, domain.ErrExchangeUnavailable, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrExchangeUnavailable, err)
}

func (a *BinanceAdapter) formatQty(v float64) string {
	return decimal.NewFromFloat(v).Truncate(a.qtyDP).String()
}

func (a *BinanceAdapter) formatPrice(v float64) string {
	return decimal.NewFromFloat(v).Truncate(a.priceDP).String()
}

// --- REST API ---

func (a *BinanceAdapter) FetchBalance(ctx context.Context) (*domain.Balance, error) {
	balances, err := a.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, wrapErr("fetch balance", err)
	}
	for _, b := range balances {
		if b.Asset != quoteAsset {
			continue
		}
		total, _ := strconv.ParseFloat(b.Balance, 64)
		free, _ := strconv.ParseFloat(b.AvailableBalance, 64)
		return &domain.Balance{
			Free:  free,
			Total: total,
			Used:  total - free,
		}, nil
	}
	return &domain.Balance{}, nil
}

func (a *BinanceAdapter) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	prices, err := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, wrapErr("fetch ticker", err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("fetch ticker: %w: no price for %s", domain.ErrExchangeUnavailable, symbol)
	}
	last, _ := strconv.ParseFloat(prices[0].Price, 64)
	return &domain.Ticker{Symbol: symbol, LastPrice: last}, nil
}

func (a *BinanceAdapter) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	klines, err := a.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("fetch candles", err)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)
		candles = append(candles, domain.Candle{
			Time:   k.OpenTime,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return candles, nil
}

func orderSide(side domain.OrderSide) futures.SideType {
	if side == domain.OrderSideBuy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func (a *BinanceAdapter) CreateMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, amount float64) (*domain.Order, error) {
	resp, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide(side)).
		Type(futures.OrderTypeMarket).
		Quantity(a.formatQty(amount)).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("create market order", err)
	}
	return &domain.Order{
		ID:        strconv.FormatInt(resp.OrderID, 10),
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderTypeMarket,
		Amount:    amount,
		CreatedAt: time.Now(),
	}, nil
}

func (a *BinanceAdapter) CreateLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, price float64) (*domain.Order, error) {
	resp, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide(side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(a.formatQty(amount)).
		Price(a.formatPrice(price)).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("create limit order", err)
	}
	return &domain.Order{
		ID:        strconv.FormatInt(resp.OrderID, 10),
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderTypeLimit,
		Amount:    amount,
		Price:     price,
		CreatedAt: time.Now(),
	}, nil
}

func (a *BinanceAdapter) CreateStopOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, stopPrice float64) (*domain.Order, error) {
	resp, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide(side)).
		Type(futures.OrderTypeStopMarket).
		Quantity(a.formatQty(amount)).
		StopPrice(a.formatPrice(stopPrice)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("create stop order", err)
	}
	return &domain.Order{
		ID:        strconv.FormatInt(resp.OrderID, 10),
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderTypeStop,
		Amount:    amount,
		Price:     stopPrice,
		CreatedAt: time.Now(),
	}, nil
}

func (a *BinanceAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("cancel order: bad order id %q: %v", orderID, err)
	}
	if _, err := a.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx); err != nil {
		return wrapErr("cancel order", err)
	}
	return nil
}

func (a *BinanceAdapter) FetchOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	raw, err := a.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, wrapErr("fetch open orders", err)
	}

	orders := make([]*domain.Order, 0, len(raw))
	for _, o := range raw {
		price, _ := strconv.ParseFloat(o.Price, 64)
		qty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
		side := domain.OrderSideBuy
		if o.Side == futures.SideTypeSell {
			side = domain.OrderSideSell
		}
		typ := domain.OrderTypeLimit
		switch o.Type {
		case futures.OrderTypeMarket:
			typ = domain.OrderTypeMarket
		case futures.OrderTypeStopMarket, futures.OrderTypeStop:
			typ = domain.OrderTypeStop
		}
		orders = append(orders, &domain.Order{
			ID:     strconv.FormatInt(o.OrderID, 10),
			Symbol: o.Symbol,
			Side:   side,
			Type:   typ,
			Amount: qty,
			Price:  price,
		})
	}
	return orders, nil
}

func (a *BinanceAdapter) FetchPositions(ctx context.Context) ([]*domain.ExchangePosition, error) {
	risks, err := a.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, wrapErr("fetch positions", err)
	}

	var positions []*domain.ExchangePosition
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		pnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
		leverage, _ := strconv.Atoi(r.Leverage)
		side := domain.SideLong
		size := amt
		if amt < 0 {
			side = domain.SideShort
			size = -amt
		}
		positions = append(positions, &domain.ExchangePosition{
			Symbol:        r.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    entry,
			UnrealizedPnL: pnl,
			Leverage:      leverage,
		})
	}
	return positions, nil
}

// TestConnection verifies API access and returns the total quote balance.
func (a *BinanceAdapter) TestConnection(ctx context.Context) (float64, error) {
	balance, err := a.FetchBalance(ctx)
	if err != nil {
		return 0, err
	}
	return balance.Total, nil
}

// --- Mark price stream ---

type markPriceEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
}

type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// OnPriceUpdate registers a callback for streamed mark prices. Must be
// called before Subscribe.
func (a *BinanceAdapter) OnPriceUpdate(cb func(symbol string, price float64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, cb)
}

// Subscribe opens the websocket on first use and subscribes the given
// symbols to the 1s mark price stream. The read loop reconnects with
// exponential backoff and re-subscribes everything it knew about.
func (a *BinanceAdapter) Subscribe(symbols []string) error {
	a.mu.Lock()
	var fresh []string
	for _, s := range symbols {
		if !a.subscribed[s] {
			a.subscribed[s] = true
			fresh = append(fresh, s)
		}
	}
	conn := a.wsConn
	a.mu.Unlock()

	if len(fresh) == 0 {
		return nil
	}

	if conn == nil {
		if err := a.connectWS(); err != nil {
			return err
		}
		go a.readLoop()
		return nil
	}
	return a.sendSubscribe(conn, fresh)
}

func (a *BinanceAdapter) connectWS() error {
	conn, _, err := websocket.DefaultDialer.Dial(a.wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w: %v", domain.ErrExchangeUnavailable, err)
	}

	a.mu.Lock()
	a.wsConn = conn
	all := make([]string, 0, len(a.subscribed))
	for s := range a.subscribed {
		all = append(all, s)
	}
	a.mu.Unlock()

	return a.sendSubscribe(conn, all)
}

func (a *BinanceAdapter) sendSubscribe(conn *websocket.Conn, symbols []string) error {
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, strings.ToLower(s)+"@markPrice@1s")
	}
	req := wsRequest{Method: "SUBSCRIBE", Params: params, ID: time.Now().UnixMilli()}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("ws subscribe: %w: %v", domain.ErrExchangeUnavailable, err)
	}
	a.logger.Info("Subscribed to mark price stream", zap.Strings("symbols", symbols))
	return nil
}

func (a *BinanceAdapter) readLoop() {
	reconnect := &backoff.Backoff{
		Min:    time.Second,
		Max:    time.Minute,
		Factor: 2,
		Jitter: true,
	}

	for {
		select {
		case <-a.wsStop:
			return
		default:
		}

		a.mu.Lock()
		conn := a.wsConn
		a.mu.Unlock()
		if conn == nil {
			if err := a.connectWS(); err != nil {
				wait := reconnect.Duration()
				a.logger.Error("WS reconnect failed", zap.Duration("retry_in", wait), zap.Error(err))
				time.Sleep(wait)
				continue
			}
			reconnect.Reset()
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			a.logger.Warn("WS read failed, reconnecting", zap.Error(err))
			conn.Close()
			a.mu.Lock()
			a.wsConn = nil
			a.mu.Unlock()
			continue
		}

		var event markPriceEvent
		if err := json.Unmarshal(msg, &event); err != nil || event.EventType != "markPriceUpdate" {
			continue
		}
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		a.mu.Lock()
		cbs := append([]func(string, float64){}, a.callbacks...)
		a.mu.Unlock()
		for _, cb := range cbs {
			cb(event.Symbol, price)
		}
	}
}

// CloseStream shuts the websocket down.
func (a *BinanceAdapter) CloseStream() {
	close(a.wsStop)
	a.mu.Lock()
	if a.wsConn != nil {
		a.wsConn.Close()
		a.wsConn = nil
	}
	a.mu.Unlock()
}
