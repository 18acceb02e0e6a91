package host

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"nivesh/internal/asset"
	"nivesh/internal/config"
	"nivesh/internal/gamelog"
	"nivesh/internal/money"
	"nivesh/internal/price"
	"nivesh/internal/session"
	"nivesh/internal/wire"
)

func rupees(v int64) money.Money { return v * money.MicrosPerRupee }

func testSettings() config.GameSettings {
	return config.GameSettings{
		StartYear:         2003,
		Seed:              42,
		InitialPocketCash: 100_000,
		YearlyIncome:      50_000,
		SavingsRateBps:    400,
		EnableQuiz:        true,
		Selections: map[string][]string{
			"gold":   {"GOLD"},
			"stocks": {"RELIANCE"},
		},
	}
}

func testDataset(t *testing.T) *price.MemoryDataset {
	t.Helper()
	ds := price.NewMemoryDataset()
	for y := 2003; y <= 2023; y++ {
		for m := 1; m <= 12; m++ {
			if err := ds.Put("GOLD", y, m, rupees(5_000+int64(y-2003)*500)); err != nil {
				t.Fatalf("put gold: %v", err)
			}
			if y >= 2004 {
				if err := ds.Put("RELIANCE", y, m, rupees(300+int64(y-2004)*50)); err != nil {
					t.Fatalf("put reliance: %v", err)
				}
			}
		}
	}
	return ds
}

func testHub(t *testing.T) *Hub {
	t.Helper()
	h, err := NewHub(testSettings(), testDataset(t), gamelog.Noop{}, slog.Default())
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	return h
}

func joinTestPlayer(t *testing.T, h *Hub, id string) *player {
	t.Helper()
	p := &player{
		id:    id,
		name:  id,
		ch:    &wire.Channel{},
		acked: make(map[string]wire.TradeAck),
	}
	if err := h.addPlayer(p); err != nil {
		t.Fatalf("add player: %v", err)
	}
	return p
}

func TestApplyTradeBuyUsesHostPrice(t *testing.T) {
	h := testHub(t)
	p := joinTestPlayer(t, h, "p1")

	ack := h.applyTrade(p, wire.TradeCommand{
		CommandID:     uuid.NewString(),
		Kind:          wire.TradeBuy,
		Symbol:        "GOLD",
		QuantityUnits: 2 * money.QtyScale,
		// Claimed price is a lie; the host trades at its own feed.
		Price: rupees(1),
	})
	if !ack.OK {
		t.Fatalf("buy rejected: %s", ack.Error)
	}
	h.mu.Lock()
	holding := p.state.Holdings["GOLD"]
	cash := p.state.PocketCash
	h.mu.Unlock()
	if holding.TotalInvested != rupees(10_000) {
		t.Fatalf("invested = %d, want %d", holding.TotalInvested, rupees(10_000))
	}
	if cash != rupees(90_000) {
		t.Fatalf("cash = %d, want %d", cash, rupees(90_000))
	}
	if ack.Digest == "" || ack.Snapshot == nil {
		t.Fatalf("ack missing digest or snapshot: %+v", ack)
	}
}

func TestApplyTradeIsIdempotent(t *testing.T) {
	h := testHub(t)
	p := joinTestPlayer(t, h, "p1")

	cmd := wire.TradeCommand{
		CommandID: uuid.NewString(),
		Kind:      wire.TradeDeposit,
		Amount:    rupees(10_000),
	}
	first := h.applyTrade(p, cmd)
	second := h.applyTrade(p, cmd)
	if !first.OK || !second.OK {
		t.Fatalf("acks: %+v / %+v", first, second)
	}
	if first.Digest != second.Digest {
		t.Fatalf("replayed command changed state: %s vs %s", first.Digest, second.Digest)
	}
	h.mu.Lock()
	balance := p.state.Savings.Balance
	h.mu.Unlock()
	if balance != rupees(10_000) {
		t.Fatalf("deposit applied twice: balance = %d", balance)
	}
}

func TestApplyTradeRejectionKeepsDigest(t *testing.T) {
	h := testHub(t)
	p := joinTestPlayer(t, h, "p1")

	h.mu.Lock()
	before := p.state.Digest()
	h.mu.Unlock()

	ack := h.applyTrade(p, wire.TradeCommand{
		CommandID: uuid.NewString(),
		Kind:      wire.TradeWithdraw,
		Amount:    rupees(1), // nothing in savings yet
	})
	if ack.OK {
		t.Fatalf("withdraw from empty savings must fail")
	}
	if ack.Digest != before {
		t.Fatalf("rejected command changed the digest")
	}
	if len(p.journal) != 0 {
		t.Fatalf("rejected command landed in the journal")
	}
}

func TestApplyTradeLockedCategory(t *testing.T) {
	h := testHub(t)
	p := joinTestPlayer(t, h, "p1")

	// Stocks unlock in game year 2 at the earliest; the clock is at 1/1.
	ack := h.applyTrade(p, wire.TradeCommand{
		CommandID:     uuid.NewString(),
		Kind:          wire.TradeBuy,
		Symbol:        "RELIANCE",
		QuantityUnits: money.QtyScale,
	})
	if ack.OK {
		t.Fatalf("buy in a locked category must fail")
	}
	if !strings.Contains(ack.Error, "not unlocked") {
		t.Fatalf("error = %q", ack.Error)
	}
}

func TestLeaderboardOrdersByNetWorth(t *testing.T) {
	h := testHub(t)
	rich := joinTestPlayer(t, h, "rich")
	joinTestPlayer(t, h, "poor")

	ack := h.applyTrade(rich, wire.TradeCommand{
		CommandID:     uuid.NewString(),
		Kind:          wire.TradeBuy,
		Symbol:        "GOLD",
		QuantityUnits: money.QtyScale,
	})
	if !ack.OK {
		t.Fatalf("buy: %s", ack.Error)
	}

	// Holding valued at cost, so both net worths still equal the initial
	// cash; rank then falls back to player id order.
	board := h.Leaderboard()
	if len(board.Rows) != 2 {
		t.Fatalf("rows = %d", len(board.Rows))
	}
	if board.Rows[0].Rank != 1 || board.Rows[1].Rank != 2 {
		t.Fatalf("ranks = %d, %d", board.Rows[0].Rank, board.Rows[1].Rank)
	}
	for _, row := range board.Rows {
		if row.NetWorth != rupees(100_000) {
			t.Fatalf("net worth = %d, want %d", row.NetWorth, rupees(100_000))
		}
	}
}

func TestStepAdvancesPortfoliosWithClock(t *testing.T) {
	h := testHub(t)
	h.cfg.EnableQuiz = false
	p := joinTestPlayer(t, h, "p1")

	for i := 0; i < 3; i++ {
		if ended := h.step(context.Background()); ended {
			t.Fatalf("ended after %d steps", i+1)
		}
	}
	clk := h.coord.Clock()
	if clk.Tick != 3 || clk.Year != 1 || clk.Month != 4 {
		t.Fatalf("clock = %+v", clk)
	}
	h.mu.Lock()
	y, m := p.state.CurrentYear, p.state.CurrentMonth
	h.mu.Unlock()
	if y != clk.Year || m != clk.Month {
		t.Fatalf("portfolio clock %d/%d out of step with session clock %d/%d", y, m, clk.Year, clk.Month)
	}
}

func TestQuizGatePausesClockUntilAnswered(t *testing.T) {
	h := testHub(t)
	p := joinTestPlayer(t, h, "p1")

	clk := h.coord.Clock()
	if err := h.coord.RequireQuiz(p.id, asset.Stocks); err != nil {
		t.Fatalf("require quiz: %v", err)
	}
	if h.coord.Phase() != session.PausedQuiz {
		t.Fatalf("phase = %v", h.coord.Phase())
	}
	if h.step(context.Background()) {
		t.Fatalf("session ended unexpectedly")
	}
	if got := h.coord.Clock(); got.Tick != clk.Tick {
		t.Fatalf("clock advanced through a quiz gate: %+v", got)
	}

	h.completeQuiz(p, wire.QuizAnswer{Category: asset.Stocks})
	if h.coord.Phase() != session.Running {
		t.Fatalf("phase after answer = %v", h.coord.Phase())
	}
	if h.step(context.Background()) {
		t.Fatalf("session ended unexpectedly")
	}
	if got := h.coord.Clock(); got.Tick != clk.Tick+1 {
		t.Fatalf("clock = %+v, want tick %d", got, clk.Tick+1)
	}
	if !p.state.QuizCompleted(asset.Stocks) {
		t.Fatalf("quiz not marked complete on authoritative state")
	}
}

func TestLateJoinerCatchesUpToClock(t *testing.T) {
	h := testHub(t)
	h.cfg.EnableQuiz = false

	for i := 0; i < 5; i++ {
		h.step(context.Background())
	}
	p := joinTestPlayer(t, h, "late")

	clk := h.coord.Clock()
	h.mu.Lock()
	y, m := p.state.CurrentYear, p.state.CurrentMonth
	h.mu.Unlock()
	if y != clk.Year || m != clk.Month {
		t.Fatalf("late joiner at %d/%d, session at %d/%d", y, m, clk.Year, clk.Month)
	}
}

func TestDisconnectReleasesQuizGate(t *testing.T) {
	h := testHub(t)
	p := joinTestPlayer(t, h, "p1")

	if err := h.coord.RequireQuiz(p.id, asset.Gold); err != nil {
		t.Fatalf("require quiz: %v", err)
	}
	h.removePlayer(p.id)
	if h.coord.Phase() != session.Running {
		t.Fatalf("phase after disconnect = %v", h.coord.Phase())
	}
}
