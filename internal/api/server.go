// Package api exposes the host's control plane: session info, the
// facilitator pause switch, the leaderboard, and the websocket join
// endpoint the game protocol runs over.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"nivesh/internal/asset"
	"nivesh/internal/config"
	"nivesh/internal/gamelog"
	"nivesh/internal/host"
	"nivesh/internal/portfolio"
	"nivesh/internal/session"
)

type Server struct {
	cfg  config.HostConfig
	log  *slog.Logger
	hub  *host.Hub
	sink gamelog.Sink
	mux  *chi.Mux
}

func New(cfg config.HostConfig, logger *slog.Logger, hub *host.Hub, sink gamelog.Sink) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = gamelog.Noop{}
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		hub:  hub,
		sink: sink,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	// Websocket joins skip the request timeout; the connection lives for
	// the whole session.
	r.Get("/ws", s.hub.ServeWS)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/session", s.handleSessionInfo)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/prices/{symbol}/history", s.handlePriceHistory)
		r.Post("/sync/trades", s.handleSyncTrades)

		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/session/pause", s.handlePause(true))
			r.Post("/session/resume", s.handlePause(false))
		})
	})
}

// adminMiddleware guards facilitator endpoints with the shared token.
// With no token configured the host trusts its network, which is the
// normal classroom setup.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken != "" && bearerToken(r.Header.Get("Authorization")) != s.cfg.AdminToken {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, _ *http.Request) {
	clk := s.hub.Clock()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.hub.ID().String(),
		"phase":      s.hub.Phase().String(),
		"tick":       clk.Tick,
		"year":       clk.Year,
		"month":      clk.Month,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Leaderboard())
}

// handlePriceHistory serves the trailing price window for one symbol,
// ending at the current game month. Months before data exists are zero.
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	months := 12
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 240 {
			writeError(w, http.StatusBadRequest, "months must be between 1 and 240")
			return
		}
		months = n
	}
	hist, err := s.hub.PriceHistory(symbol, months)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"months": months,
		"prices": hist,
	})
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := s.hub.SetPaused(paused); err != nil {
			writeDomainError(w, err)
			return
		}
		s.log.Info("facilitator pause", "paused", paused)
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    true,
			"phase": s.hub.Phase().String(),
		})
	}
}

// handleSyncTrades accepts a client's bulk journal upload at game end.
// Inserts are idempotent on command id, so replays after a crash are
// harmless.
func (s *Server) handleSyncTrades(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string             `json:"session_id"`
		PlayerID  string             `json:"player_id"`
		Trades    []gamelog.TradeRow `json:"trades"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if sessionID != s.hub.ID() {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if strings.TrimSpace(in.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "player id is required")
		return
	}
	if err := s.sink.RecordTrades(r.Context(), sessionID, in.PlayerID, in.Trades); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "accepted": len(in.Trades)})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionEnded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, portfolio.ErrValidation),
		errors.Is(err, portfolio.ErrInsufficientFunds),
		errors.Is(err, portfolio.ErrInsufficientBalance),
		errors.Is(err, portfolio.ErrInsufficientHoldings),
		errors.Is(err, portfolio.ErrAccountInDebt),
		errors.Is(err, portfolio.ErrMaxFDReached),
		errors.Is(err, portfolio.ErrNotYetMatured),
		errors.Is(err, portfolio.ErrAlreadyMatured):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, portfolio.ErrFDNotFound),
		errors.Is(err, asset.ErrUnknownInstrument):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
