package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/usecase"
)

const queueSize = 100

// TraderControl is the slice of the trader the bot commands need.
type TraderControl interface {
	Running() bool
	Positions() []usecase.Position
	Statistics() map[string]domain.PairStats
	InitialBalance() float64
	LastPrice(symbol string) float64
	ClosePosition(ctx context.Context, symbol string) error
}

// TelegramNotifier queues outbound messages on a buffered channel and
// drains them from a single goroutine, so Notify never blocks a trading
// tick. When the queue is full the message is dropped and counted.
type TelegramNotifier struct {
	bot          *tele.Bot
	chat         *tele.Chat
	logger       *zap.Logger
	notifyTrades bool
	notifyErrors bool

	queue   chan string
	done    chan struct{}
	dropped atomic.Int64
}

func NewTelegramNotifier(token string, chatID int64, notifyTrades, notifyErrors bool, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:          bot,
		chat:         &tele.Chat{ID: chatID},
		logger:       logger,
		notifyTrades: notifyTrades,
		notifyErrors: notifyErrors,
		queue:        make(chan string, queueSize),
		done:         make(chan struct{}),
	}, nil
}

// Notify enqueues a message if its severity passes the configured
// filters. Errors always carry a warning prefix.
func (n *TelegramNotifier) Notify(message string, severity domain.Severity) {
	switch severity {
	case domain.SeverityTrade:
		if !n.notifyTrades {
			return
		}
	case domain.SeverityError:
		if !n.notifyErrors {
			return
		}
		message = "⚠️ " + message
	}

	select {
	case n.queue <- message:
	default:
		n.logger.Warn("Notification queue full, dropping message",
			zap.Int64("dropped_total", n.dropped.Add(1)))
	}
}

// Start wires the command handlers and launches the poller plus the
// queue drain goroutine.
func (n *TelegramNotifier) Start(trader TraderControl) {
	n.registerHandlers(trader)
	go n.bot.Start()
	go n.drain()
	n.logger.Info("Telegram notifier started", zap.Int64("chat_id", n.chat.ID))
}

func (n *TelegramNotifier) Stop() {
	close(n.done)
	n.bot.Stop()
}

func (n *TelegramNotifier) drain() {
	for {
		select {
		case <-n.done:
			return
		case msg := <-n.queue:
			if _, err := n.bot.Send(n.chat, msg); err != nil {
				n.logger.Error("Failed to send telegram message", zap.Error(err))
			}
			// Telegram throttles around 30 msg/s per bot; one per
			// second is plenty for trade notifications.
			time.Sleep(time.Second)
		}
	}
}

func (n *TelegramNotifier) registerHandlers(trader TraderControl) {
	n.bot.Handle("/status", func(c tele.Context) error {
		state := "stopped"
		if trader.Running() {
			state = "running"
		}
		return c.Send(fmt.Sprintf("Bot is %s\nOpen positions: %d\nInitial balance: %.2f",
			state, len(trader.Positions()), trader.InitialBalance()))
	})

	n.bot.Handle("/positions", func(c tele.Context) error {
		positions := trader.Positions()
		if len(positions) == 0 {
			return c.Send("No open positions")
		}
		var b strings.Builder
		for _, p := range positions {
			price := trader.LastPrice(p.Symbol)
			b.WriteString(fmt.Sprintf("%s %s qty %.6f avg %.4f pnl %.2f\n",
				p.Symbol, p.Side, p.TotalAmount, p.AverageEntry, p.UnrealizedPnL(price)))
		}
		return c.Send(b.String())
	})

	n.bot.Handle("/stats", func(c tele.Context) error {
		stats := trader.Statistics()
		if len(stats) == 0 {
			return c.Send("No closed deals yet")
		}
		var b strings.Builder
		for symbol, s := range stats {
			b.WriteString(fmt.Sprintf("%s: pnl %.2f deals %d winrate %.1f%%\n",
				symbol, s.RealizedPnL, s.Deals, s.Winrate()))
		}
		return c.Send(b.String())
	})

	n.bot.Handle("/close", func(c tele.Context) error {
		symbol := strings.TrimSpace(c.Message().Payload)
		if symbol == "" {
			return c.Send("Usage: /close SYMBOL")
		}
		symbol = strings.ToUpper(symbol)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := trader.ClosePosition(ctx, symbol); err != nil {
			return c.Send(fmt.Sprintf("Close %s failed: %v", symbol, err))
		}
		return c.Send(fmt.Sprintf("Closed %s", symbol))
	})
}

// LogNotifier writes notifications to the logger only. Used when
// telegram credentials are absent.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(message string, severity domain.Severity) {
	if severity == domain.SeverityError {
		n.logger.Error(message)
		return
	}
	n.logger.Info(message, zap.String("severity", string(severity)))
}
