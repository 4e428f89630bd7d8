package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/domain"
)

func TestPlaceOrderFailureReturnsNil(t *testing.T) {
	mockEx := &MockExchange{Price: 50000, FailMarket: true}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), false)

	order := exec.PlaceOrder(context.Background(), "BTCUSDT", domain.OrderSideBuy, 0.01, domain.OrderTypeMarket, 0)
	require.Nil(t, order)
}

func TestSignalsOnlySynthesizesOrders(t *testing.T) {
	mockEx := &MockExchange{Price: 50000}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), true)

	order := exec.PlaceOrder(context.Background(), "BTCUSDT", domain.OrderSideBuy, 0.01, domain.OrderTypeMarket, 0)
	require.NotNil(t, order)
	require.True(t, strings.HasPrefix(order.ID, "signal-"))
	// nothing reached the exchange
	require.Empty(t, mockEx.Created)

	sl, tp := exec.SetStopLossTakeProfit(context.Background(), "BTCUSDT", domain.SideLong, 50000, 5, 10, 0.01)
	require.True(t, strings.HasPrefix(sl.ID, "signal-"))
	require.True(t, strings.HasPrefix(tp.ID, "signal-"))
	require.Empty(t, mockEx.Created)
}

func TestLimitRetryTreatsGoneOrderAsFilled(t *testing.T) {
	// FetchOpenOrders returns nothing, so the first submission counts as a fill
	mockEx := &MockExchange{Price: 50000}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), false)

	order := exec.PlaceLimitOrderWithRetry(context.Background(), "BTCUSDT", domain.OrderSideBuy, 0.01, 49900, 3, time.Second, false)
	require.NotNil(t, order)
	require.Equal(t, domain.OrderTypeLimit, order.Type)
	require.Empty(t, mockEx.Cancelled)
}

func TestLimitRetryFallsBackToMarket(t *testing.T) {
	mockEx := &MockExchange{Price: 50000}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), false)

	// every poll reports the freshest order as still resting
	mockEx.OpenOrders = nil
	done := make(chan struct{})
	go func() {
		// keep the open-order list in sync with submissions
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mockEx.KeepOrdersOpen()
			}
		}
	}()
	defer close(done)

	order := exec.PlaceLimitOrderWithRetry(context.Background(), "BTCUSDT", domain.OrderSideBuy, 0.01, 49900, 2, time.Second, true)
	require.NotNil(t, order)
	require.Equal(t, domain.OrderTypeMarket, order.Type)
	require.Len(t, mockEx.Cancelled, 2)
}

func TestLimitRetryExhaustionWithoutFallback(t *testing.T) {
	mockEx := &MockExchange{Price: 50000}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), false)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mockEx.KeepOrdersOpen()
			}
		}
	}()
	defer close(done)

	order := exec.PlaceLimitOrderWithRetry(context.Background(), "BTCUSDT", domain.OrderSideBuy, 0.01, 49900, 2, time.Second, false)
	require.Nil(t, order)
	require.Len(t, mockEx.Cancelled, 2)
}

func TestLimitRetryAssumesFillWhenPollFails(t *testing.T) {
	mockEx := &MockExchange{Price: 50000, OpenOrdersErr: domain.ErrExchangeUnavailable}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), false)

	order := exec.PlaceLimitOrderWithRetry(context.Background(), "BTCUSDT", domain.OrderSideBuy, 0.01, 49900, 3, time.Second, false)
	require.NotNil(t, order)
	require.Empty(t, mockEx.Cancelled)
}

func TestLimitRetryStopsOnContextCancel(t *testing.T) {
	mockEx := &MockExchange{Price: 50000}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), false)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	order := exec.PlaceLimitOrderWithRetry(ctx, "BTCUSDT", domain.OrderSideBuy, 0.01, 49900, 0, time.Second, true)
	require.Nil(t, order)
}

func TestSetStopLossTakeProfitPlacesBothLegs(t *testing.T) {
	mockEx := &MockExchange{Price: 100}
	exec := NewOrderExecutor(mockEx, zap.NewNop(), false)

	sl, tp := exec.SetStopLossTakeProfit(context.Background(), "BTCUSDT", domain.SideLong, 100, 5, 10, 0.5)
	require.NotNil(t, sl)
	require.NotNil(t, tp)
	require.InDelta(t, 95.0, sl.Price, 1e-9)
	require.InDelta(t, 110.0, tp.Price, 1e-9)
	require.Equal(t, domain.OrderSideSell, sl.Side)
	require.Equal(t, domain.OrderSideSell, tp.Side)
}
