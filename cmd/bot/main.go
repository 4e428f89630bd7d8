package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/config"
	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/exchange"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/logger"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/notifier"
	"github.com/vitos/crypto_auto_trader/internal/infrastructure/storage"
	"github.com/vitos/crypto_auto_trader/internal/usecase"
	"github.com/vitos/crypto_auto_trader/internal/web"
)

func main() {
	// 1. Load Config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Printf("Failed to load secrets: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "bot.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange (Binance futures)
	binance := exchange.NewBinanceAdapter(
		secrets.BinanceAPIKey,
		secrets.BinanceAPISecret,
		secrets.BinanceTestnet,
		log,
	)
	ctx := context.Background()
	if balance, err := binance.TestConnection(ctx); err != nil {
		log.Error("Exchange connection check failed", zap.Error(err))
	} else {
		log.Info("Exchange connected", zap.Float64("balance", balance))
	}

	// 5. Init Notifier
	var notify domain.Notifier
	var telegram *notifier.TelegramNotifier
	if secrets.TelegramToken != "" && secrets.TelegramChatID != 0 {
		telegram, err = notifier.NewTelegramNotifier(
			secrets.TelegramToken,
			secrets.TelegramChatID,
			cfg.Notifications.Trades,
			cfg.Notifications.Errors,
			log,
		)
		if err != nil {
			log.Fatal("Failed to init telegram", zap.Error(err))
		}
		notify = telegram
	} else {
		log.Warn("Telegram credentials missing, notifications go to the log only")
		notify = notifier.NewLogNotifier(log)
	}

	// 6. Init Services
	evaluator := usecase.NewIndicatorEvaluator(binance, cfg.IndicatorSettings(), log)
	trader := usecase.NewTraderService(binance, evaluator, notify, store, evaluator, cfg.Settings(), log)

	if telegram != nil {
		telegram.Start(trader)
		defer telegram.Stop()
	}

	// 7. Price stream feeds the trader's last-price cache
	binance.OnPriceUpdate(func(symbol string, price float64) {
		trader.UpdatePrice(symbol, price)
	})
	if err := binance.Subscribe(cfg.Symbols); err != nil {
		log.Error("Failed to subscribe to price stream", zap.Error(err))
	}
	defer binance.CloseStream()

	// 8. Start Web Server
	server := web.NewServer(cfg.Server.Port, trader, evaluator, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	// 9. Start Trading Loop
	trader.StartLoop()
	notify.Notify(fmt.Sprintf("Bot started: %d pairs, timeframe %s", len(cfg.Symbols), cfg.Timeframe), domain.SeverityInfo)

	// 10. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	trader.StopLoop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
}
