package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/config"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/exchange"
)

// keyPreview shows the first characters of a key without assuming its
// length.
func keyPreview(key string) string {
	if len(key) > 4 {
		return key[:4]
	}
	return key
}

func main() {
	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Printf("Failed to load secrets: %v\n", err)
		os.Exit(1)
	}
	if secrets.BinanceAPIKey == "" {
		fmt.Println("BINANCE_API_KEY is not set")
		os.Exit(1)
	}

	fmt.Printf("Testing Binance Interaction...\n")
	fmt.Printf("API Key: %s...\n", keyPreview(secrets.BinanceAPIKey))
	fmt.Printf("Testnet: %v\n", secrets.BinanceTestnet)

	log, _ := zap.NewDevelopment()
	adapter := exchange.NewBinanceAdapter(secrets.BinanceAPIKey, secrets.BinanceAPISecret, secrets.BinanceTestnet, log)
	ctx := context.Background()

	// 1. Check Public Endpoint (Price)
	ticker, err := adapter.FetchTicker(ctx, "BTCUSDT")
	if err != nil {
		fmt.Printf("❌ Failed to get price: %v\n", err)
	} else {
		fmt.Printf("✅ Current Price (BTCUSDT): %f\n", ticker.LastPrice)
	}

	// 2. Check Private Endpoint (Balance)
	balance, err := adapter.FetchBalance(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get balance: %v\n", err)
	} else {
		fmt.Printf("✅ Balance: Free=%f, Total=%f\n", balance.Free, balance.Total)
	}

	// 3. Check Open Positions
	positions, err := adapter.FetchPositions(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get positions: %v\n", err)
	} else {
		fmt.Printf("✅ Open positions: %d\n", len(positions))
		for _, p := range positions {
			fmt.Printf("   %s %s Size=%f Entry=%f PnL=%f\n",
				p.Symbol, p.Side, p.Size, p.EntryPrice, p.UnrealizedPnL)
		}
	}
}
