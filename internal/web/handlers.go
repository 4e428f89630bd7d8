package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := s.trader.Settings()
	s.writeJSON(w, map[string]any{
		"running":         s.trader.Running(),
		"signals_only":    settings.SignalsOnly,
		"symbols":         settings.Symbols,
		"open_positions":  s.trader.OpenPositionCount(),
		"initial_balance": s.trader.InitialBalance(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.trader.Positions())
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "symbol parameter required", http.StatusBadRequest)
		return
	}
	if err := s.trader.ClosePosition(r.Context(), symbol); err != nil {
		s.logger.Error("Failed to close position", zap.String("symbol", symbol), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"status": "closed", "symbol": symbol})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.trader.Statistics())
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	s.writeJSON(w, map[string]any{
		"symbol": symbol,
		"curve":  s.trader.BalanceCurve(symbol),
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.evaluator.RecentSignals(limitParam(r, 50)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.tradeRepo.ListPositionHistory(r.Context(), limitParam(r, 100))
	if err != nil {
		s.logger.Error("Failed to list position history", zap.Error(err))
		http.Error(w, "Failed to list history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, history)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.tradeRepo.ListTrades(r.Context(), limitParam(r, 100))
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.trader.StartLoop()
	s.writeJSON(w, map[string]any{"running": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.trader.StopLoop()
	s.writeJSON(w, map[string]any{"running": false})
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	balance, err := s.trader.ProbeExchange(r.Context())
	if err != nil {
		s.logger.Error("Exchange probe failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, balance)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
