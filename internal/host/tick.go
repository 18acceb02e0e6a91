package host

import (
	"context"
	"time"

	"nivesh/internal/gamelog"
	"nivesh/internal/networth"
	"nivesh/internal/session"
	"nivesh/internal/wire"
)

// Run drives the session clock until the context is cancelled or the
// twenty-year window completes. One real-world interval equals one game
// month; paused ticks elapse without advancing game time.
func (h *Hub) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	h.log.Info("session clock started",
		"session", h.id, "every", every, "start_year", h.cfg.StartYear)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("session clock stopped", "session", h.id)
			return
		case <-ticker.C:
			if h.step(ctx) {
				return
			}
		}
	}
}

// step advances one tick. It returns true when the game has ended.
func (h *Hub) step(ctx context.Context) bool {
	clk, ok := h.coord.Advance()
	if !ok {
		// Paused or ended. Phase changes are announced where they
		// happen; nothing to broadcast here.
		if h.coord.Ended() {
			h.finish(ctx)
			return true
		}
		return false
	}

	if clk.Month == 1 {
		for _, ev := range h.sched.EventsForYear(clk.Year) {
			h.log.Info("category unlocking", "session", h.id,
				"year", clk.Year, "category", ev.Category, "symbols", ev.Symbols)
		}
	}

	h.advancePortfolios()
	h.broadcastPrices(clk)
	h.promptQuizzes(clk)
	h.broadcastLeaderboard(clk)

	if h.coord.Ended() {
		h.finish(ctx)
		return true
	}
	return false
}

func (h *Hub) advancePortfolios() {
	income := h.cfg.YearlyIncomeMicros()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.players {
		p.state.Tick(income)
	}
}

// broadcastPrices pushes one tick per unlocked symbol. Symbols without a
// value this month are simply skipped; clients fall back to cost basis.
func (h *Hub) broadcastPrices(clk session.Clock) {
	calY, calM := h.sched.Calendar(clk.Year, clk.Month)
	for _, ev := range h.sched.Events() {
		if !h.sched.IsUnlocked(ev.Category, clk.Year, clk.Month) {
			continue
		}
		for _, symbol := range ev.Symbols {
			value, err := h.prices.Get(symbol, calY, calM)
			if err != nil {
				continue
			}
			env, err := wire.NewEnvelope(wire.MsgPriceTick, clk, wire.PriceTick{
				Symbol:        symbol,
				CalendarYear:  calY,
				CalendarMonth: calM,
				Price:         value,
			})
			if err != nil {
				h.log.Error("encode price tick", "symbol", symbol, "err", err)
				continue
			}
			h.broadcast(env)
		}
	}
}

// promptQuizzes fires at each category's unlock moment: every connected
// player owes an answer before the clock moves again.
func (h *Hub) promptQuizzes(clk session.Clock) {
	if !h.cfg.EnableQuiz {
		return
	}
	for _, ev := range h.sched.Events() {
		if !h.sched.IsUnlockingNow(ev.Category, clk.Year, clk.Month) {
			continue
		}
		h.mu.Lock()
		targets := make([]*player, 0, len(h.players))
		for _, p := range h.players {
			if !p.state.QuizCompleted(ev.Category) {
				targets = append(targets, p)
			}
		}
		h.mu.Unlock()

		for _, p := range targets {
			if err := h.coord.RequireQuiz(p.id, ev.Category); err != nil {
				continue
			}
			env, err := wire.NewEnvelope(wire.MsgQuizPrompt, clk, wire.QuizPrompt{
				Category:      ev.Category,
				QuestionIndex: p.state.QuizIndices[ev.Category],
			})
			if err != nil {
				h.log.Error("encode quiz prompt", "err", err)
				continue
			}
			if err := p.writeSealed(env); err != nil {
				h.log.Warn("quiz prompt failed", "player", p.id, "err", err)
			}
		}
	}
	h.broadcastPhase()
}

// promptBacklogQuizzes covers the unlock moments a player was not there
// for: categories open at game start and anything a late joiner missed.
func (h *Hub) promptBacklogQuizzes(p *player) {
	if !h.cfg.EnableQuiz {
		return
	}
	clk := h.coord.Clock()
	for _, ev := range h.sched.Events() {
		if !h.sched.IsUnlocked(ev.Category, clk.Year, clk.Month) {
			continue
		}
		h.mu.Lock()
		done := p.state.QuizCompleted(ev.Category)
		idx := p.state.QuizIndices[ev.Category]
		h.mu.Unlock()
		if done {
			continue
		}
		if err := h.coord.RequireQuiz(p.id, ev.Category); err != nil {
			continue
		}
		env, err := wire.NewEnvelope(wire.MsgQuizPrompt, clk, wire.QuizPrompt{
			Category:      ev.Category,
			QuestionIndex: idx,
		})
		if err != nil {
			continue
		}
		if err := p.writeSealed(env); err != nil {
			h.log.Warn("quiz prompt failed", "player", p.id, "err", err)
		}
	}
	h.broadcastPhase()
}

func (h *Hub) broadcastLeaderboard(clk session.Clock) {
	board := h.Leaderboard()
	env, err := wire.NewEnvelope(wire.MsgLeaderboard, clk, board)
	if err != nil {
		h.log.Error("encode leaderboard", "err", err)
		return
	}
	h.broadcast(env)
}

// finish sends every player its final snapshot and writes the game
// records. Recording is best-effort and never blocks shutdown for long.
func (h *Hub) finish(ctx context.Context) {
	clk := h.coord.Clock()
	mode := "single"

	h.mu.Lock()
	players := make([]*player, 0, len(h.players))
	for _, p := range h.players {
		players = append(players, p)
	}
	h.mu.Unlock()
	if len(players) > 1 {
		mode = "multiplayer"
	}

	h.log.Info("session ended", "session", h.id, "players", len(players))

	duration := time.Since(h.startedAt)
	for _, p := range players {
		rep := networth.Compute(p.state, func(symbol string) (int64, error) {
			return h.priceAt(symbol, clk)
		})
		env, err := wire.NewEnvelope(wire.MsgGameOver, clk, wire.StateSnapshot{
			PlayerID: p.id,
			Digest:   p.state.Digest(),
			State:    p.state.Clone(),
		})
		if err == nil {
			if err := p.writeSealed(env); err != nil {
				h.log.Warn("game over send failed", "player", p.id, "err", err)
			}
		}
		h.recordPlayer(ctx, p, rep, mode, duration)
	}
	h.broadcastPhase()
}

func (h *Hub) recordPlayer(ctx context.Context, p *player, rep networth.Report, mode string, duration time.Duration) {
	h.mu.Lock()
	if p.recorded {
		h.mu.Unlock()
		return
	}
	p.recorded = true
	journal := append([]gamelog.TradeRow(nil), p.journal...)
	h.mu.Unlock()

	breakdown := make(map[string]int64, len(rep.Breakdown))
	for cat, v := range rep.Breakdown {
		breakdown[cat.String()] = v
	}
	rec := gamelog.GameRecord{
		SessionID:     h.id,
		PlayerID:      p.id,
		PlayerName:    p.name,
		Mode:          mode,
		FinalNetWorth: rep.NetWorth,
		ProfitLoss:    rep.ProfitLoss,
		CAGR:          rep.CAGR,
		Breakdown:     breakdown,
		Settings: map[string]any{
			"start_year":          h.cfg.StartYear,
			"seed":                h.cfg.Seed,
			"initial_pocket_cash": h.cfg.InitialPocketCash,
			"yearly_income":       h.cfg.YearlyIncome,
			"savings_rate_bps":    h.cfg.SavingsRateBps,
			"enable_quiz":         h.cfg.EnableQuiz,
			"hide_current_year":   h.cfg.HideCurrentYear,
		},
		Duration:   duration,
		FinishedAt: time.Now(),
	}

	recCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := h.sink.RecordGame(recCtx, rec); err != nil {
		h.log.Warn("record game failed", "player", p.id, "err", err)
	}
	if err := h.sink.RecordTrades(recCtx, h.id, p.id, journal); err != nil {
		h.log.Warn("record trades failed", "player", p.id, "err", err)
	}
}
