// Package host runs the authoritative side of a session: it owns the
// game clock, every player's portfolio, and the price feed, and pushes
// sealed updates to subscribed clients over websockets.
package host

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nivesh/internal/asset"
	"nivesh/internal/config"
	"nivesh/internal/gamelog"
	"nivesh/internal/networth"
	"nivesh/internal/portfolio"
	"nivesh/internal/price"
	"nivesh/internal/schedule"
	"nivesh/internal/session"
	"nivesh/internal/wire"
)

const writeWait = 10 * time.Second

// player is one subscribed client plus its authoritative portfolio. conn
// writes are guarded by mu so the tick loop and command acks never
// interleave frames.
type player struct {
	id   string
	name string

	mu   sync.Mutex
	conn *websocket.Conn
	ch   *wire.Channel

	state    *portfolio.State
	acked    map[string]wire.TradeAck
	journal  []gamelog.TradeRow
	recorded bool
}

func (p *player) writeSealed(env wire.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame, err := p.ch.Seal(env)
	if err != nil {
		return err
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Hub coordinates one session. All mutation of players and their
// portfolios happens under mu; the tick loop and the per-connection read
// loops are the only writers.
type Hub struct {
	id    uuid.UUID
	log   *slog.Logger
	cfg   config.GameSettings
	sched *schedule.Schedule

	prices *price.Provider
	coord  *session.Coordinator
	sink   gamelog.Sink

	mu        sync.Mutex
	players   map[string]*player
	lastPhase session.Phase
	startedAt time.Time
}

func NewHub(cfg config.GameSettings, data price.Dataset, sink gamelog.Sink, logger *slog.Logger) (*Hub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = gamelog.Noop{}
	}
	sched, err := schedule.Build(schedule.Settings{
		StartCalendarYear: cfg.StartYear,
		Selections:        cfg.CategorySelections(),
	}, data)
	if err != nil {
		return nil, fmt.Errorf("build unlock schedule: %w", err)
	}
	return &Hub{
		id:        uuid.New(),
		log:       logger,
		cfg:       cfg,
		sched:     sched,
		prices:    price.NewProvider(data),
		coord:     session.NewCoordinator(),
		sink:      sink,
		players:   make(map[string]*player),
		lastPhase: session.Running,
		startedAt: time.Now(),
	}, nil
}

// ID is the session identifier clients receive in the welcome message.
func (h *Hub) ID() uuid.UUID { return h.id }

// Clock returns the current game-time position.
func (h *Hub) Clock() session.Clock { return h.coord.Clock() }

// Phase returns the current session phase.
func (h *Hub) Phase() session.Phase { return h.coord.Phase() }

// SetPaused toggles the facilitator pause.
func (h *Hub) SetPaused(paused bool) error {
	if err := h.coord.SetHostPaused(paused); err != nil {
		return err
	}
	h.broadcastPhase()
	return nil
}

func (h *Hub) addPlayer(p *player) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.coord.Ended() {
		return session.ErrSessionEnded
	}
	if _, ok := h.players[p.id]; ok {
		return fmt.Errorf("player %s already connected", p.id)
	}
	if p.state == nil {
		p.state = portfolio.New(
			h.cfg.InitialCashMicros(),
			h.cfg.SavingsRateBps,
			schedule.QuizIndices(h.cfg.Seed, schedule.QuestionBankSize),
		)
		h.syncStateClock(p.state)
	}
	h.players[p.id] = p
	return nil
}

// removePlayer drops the player from the hub and releases any quiz gate
// it holds, so one disconnect can never leave the session paused.
func (h *Hub) removePlayer(id string) {
	h.mu.Lock()
	p, ok := h.players[id]
	if ok {
		delete(h.players, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	h.coord.DropPlayer(id)
	p.ch.Close()
	h.log.Info("player left", "session", h.id, "player", id)
	h.broadcastPhase()
}

// syncStateClock lines a fresh portfolio up with the session clock, for
// players who join after the first tick.
func (h *Hub) syncStateClock(s *portfolio.State) {
	clk := h.coord.Clock()
	for s.IsStarted && (s.CurrentYear < clk.Year || (s.CurrentYear == clk.Year && s.CurrentMonth < clk.Month)) {
		s.Tick(h.cfg.YearlyIncomeMicros())
	}
}

// broadcast seals env independently per player and drops subscribers
// whose connection fails.
func (h *Hub) broadcast(env wire.Envelope) {
	h.mu.Lock()
	targets := make([]*player, 0, len(h.players))
	for _, p := range h.players {
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		if err := p.writeSealed(env); err != nil {
			h.log.Warn("broadcast failed, dropping player",
				"session", h.id, "player", p.id, "err", err)
			_ = p.conn.Close()
			h.removePlayer(p.id)
		}
	}
}

func (h *Hub) broadcastPhase() {
	phase := h.coord.Phase()
	h.mu.Lock()
	if phase == h.lastPhase {
		h.mu.Unlock()
		return
	}
	h.lastPhase = phase
	h.mu.Unlock()

	env, err := wire.NewEnvelope(wire.MsgPhase, h.coord.Clock(), wire.PhaseChange{Phase: phase.String()})
	if err != nil {
		h.log.Error("encode phase", "err", err)
		return
	}
	h.broadcast(env)
}

// priceAt resolves a symbol at the current game month from the host feed.
func (h *Hub) priceAt(symbol string, clk session.Clock) (int64, error) {
	calY, calM := h.sched.Calendar(clk.Year, clk.Month)
	return h.prices.Get(symbol, calY, calM)
}

// PriceHistory returns the trailing price window for symbol ending at the
// current game month. Months before the instrument has data are zero.
func (h *Hub) PriceHistory(symbol string, months int) ([]int64, error) {
	if _, err := asset.Lookup(symbol); err != nil {
		return nil, err
	}
	clk := h.coord.Clock()
	calY, calM := h.sched.Calendar(clk.Year, clk.Month)
	return h.prices.History(symbol, calY, calM, months)
}

// Leaderboard assembles the ranking from every connected player's
// authoritative state, using last-good prices for symbols without data
// in the current month.
func (h *Hub) Leaderboard() wire.Leaderboard {
	clk := h.coord.Clock()

	h.mu.Lock()
	defer h.mu.Unlock()

	rows := make([]wire.LeaderboardRow, 0, len(h.players))
	for _, p := range h.players {
		rep := networth.Compute(p.state, func(symbol string) (int64, error) {
			v, err := h.priceAt(symbol, clk)
			if err != nil {
				if last, ok := h.prices.LastGood(symbol); ok {
					return last, nil
				}
				return 0, err
			}
			return v, nil
		})
		rows = append(rows, wire.LeaderboardRow{
			PlayerID:   p.id,
			PlayerName: p.name,
			NetWorth:   rep.NetWorth,
			CAGR:       rep.CAGR,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NetWorth != rows[j].NetWorth {
			return rows[i].NetWorth > rows[j].NetWorth
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return wire.Leaderboard{Rows: rows}
}
