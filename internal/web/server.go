package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/usecase"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	trader    *usecase.TraderService
	evaluator *usecase.IndicatorEvaluator
	tradeRepo domain.TradeRepository
	logger    *zap.Logger
}

func NewServer(
	port int,
	trader *usecase.TraderService,
	evaluator *usecase.IndicatorEvaluator,
	tradeRepo domain.TradeRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		trader:    trader,
		evaluator: evaluator,
		tradeRepo: tradeRepo,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /api/status", s.handleStatus)

	// Positions
	s.router.HandleFunc("GET /api/positions", s.handlePositions)
	s.router.HandleFunc("POST /api/close", s.handleClose)

	// Stats
	s.router.HandleFunc("GET /api/stats", s.handleStats)
	s.router.HandleFunc("GET /api/curve", s.handleCurve)

	// Signals
	s.router.HandleFunc("GET /api/signals", s.handleSignals)

	// History
	s.router.HandleFunc("GET /api/history", s.handleHistory)
	s.router.HandleFunc("GET /api/trades", s.handleTrades)

	// Loop control
	s.router.HandleFunc("POST /api/start", s.handleStart)
	s.router.HandleFunc("POST /api/stop", s.handleStop)

	// Observability
	s.router.HandleFunc("GET /api/probe", s.handleProbe)
	s.router.Handle("GET /metrics", promhttp.Handler())
	s.router.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
