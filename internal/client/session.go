// Package client runs the player side of a session: a sealed websocket
// link to the host, an optimistically updated local portfolio replica,
// and the digest reconciliation that keeps the replica honest.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nivesh/internal/gamelog"
	"nivesh/internal/money"
	"nivesh/internal/portfolio"
	"nivesh/internal/schedule"
	"nivesh/internal/session"
	"nivesh/internal/wire"
)

const (
	handshakeWait = 10 * time.Second
	writeWait     = 10 * time.Second
)

var (
	ErrNotReady     = errors.New("session config not received yet")
	ErrPriceUnknown = errors.New("no price seen for symbol yet")
	ErrGameOver     = errors.New("game is over")
)

// Session is one player's connection to a host. The local state is a
// prediction: every operation applies locally first, and the host's ack
// digest decides whether the prediction stood. On mismatch the host
// snapshot replaces the local state wholesale.
type Session struct {
	log        *slog.Logger
	conn       *websocket.Conn
	ch         *wire.Channel
	playerID   string
	playerName string
	journal    *Journal

	mu     sync.Mutex
	cfg    wire.SessionConfig
	ready  bool
	state  *portfolio.State
	clock  session.Clock
	phase  string
	prices map[string]money.Money
	board  wire.Leaderboard
	prompt *wire.QuizPrompt
	final  *portfolio.State
	over   bool

	done chan struct{}
}

// Dial connects, runs the key handshake, and returns a session ready for
// Run. Handshake failure is fatal: there is no unencrypted fallback.
func Dial(ctx context.Context, baseURL, journalDir, playerID, playerName string) (*Session, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"

	dialCtx, cancel := context.WithTimeout(ctx, handshakeWait)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	kp, err := wire.NewKeyPair()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(handshakeWait))
	hello := wire.Hello{PlayerID: playerID, PlayerName: playerName, PublicKey: kp.Public}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	var welcome wire.Welcome
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	ch := &wire.Channel{}
	if err := ch.Establish(kp, welcome.PublicKey); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("establish channel: %w", err)
	}

	journal, err := OpenJournal(journalDir, welcome.SessionID)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &Session{
		log:        slog.Default(),
		conn:       conn,
		ch:         ch,
		playerID:   playerID,
		playerName: playerName,
		journal:    journal,
		prices:     make(map[string]money.Money),
		done:       make(chan struct{}),
	}, nil
}

// Done closes when the host declares the game over or the link drops.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run pumps host messages until the connection closes or ctx is
// cancelled. It must run concurrently with the op methods.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.conn.Close()

	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	for {
		kind, frame, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || s.Over() {
				return nil
			}
			return fmt.Errorf("read host frame: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		env, gap, err := s.ch.Open(frame)
		if err != nil {
			return fmt.Errorf("open host frame: %w", err)
		}
		if gap > 0 {
			s.log.Warn("missed host frames, requesting resync", "gap", gap)
			if err := s.send(wire.MsgResyncReq, nil); err != nil {
				return err
			}
		}
		s.handle(env)
	}
}

func (s *Session) handle(env wire.Envelope) {
	switch env.Type {
	case wire.MsgSessionConfig:
		var cfg wire.SessionConfig
		if err := env.Decode(&cfg); err != nil {
			s.log.Error("bad session config", "err", err)
			return
		}
		s.mu.Lock()
		s.cfg = cfg
		if s.state == nil {
			s.state = portfolio.New(cfg.InitialCash, cfg.SavingsRateBps,
				schedule.QuizIndices(cfg.Seed, schedule.QuestionBankSize))
		}
		s.ready = true
		s.clock = env.Clock
		s.mu.Unlock()

	case wire.MsgStateSnapshot:
		var snap wire.StateSnapshot
		if err := env.Decode(&snap); err != nil {
			s.log.Error("bad snapshot", "err", err)
			return
		}
		s.mu.Lock()
		s.state = snap.State
		s.clock = env.Clock
		s.mu.Unlock()

	case wire.MsgPriceTick:
		var tick wire.PriceTick
		if err := env.Decode(&tick); err != nil {
			s.log.Error("bad price tick", "err", err)
			return
		}
		s.mu.Lock()
		s.advanceTo(env.Clock)
		s.prices[tick.Symbol] = tick.Price
		s.mu.Unlock()

	case wire.MsgTradeAck:
		var ack wire.TradeAck
		if err := env.Decode(&ack); err != nil {
			s.log.Error("bad trade ack", "err", err)
			return
		}
		s.reconcile(ack)

	case wire.MsgPhase:
		var pc wire.PhaseChange
		if err := env.Decode(&pc); err != nil {
			return
		}
		s.mu.Lock()
		s.phase = pc.Phase
		s.mu.Unlock()

	case wire.MsgQuizPrompt:
		var q wire.QuizPrompt
		if err := env.Decode(&q); err != nil {
			return
		}
		s.mu.Lock()
		s.prompt = &q
		s.mu.Unlock()

	case wire.MsgLeaderboard:
		var board wire.Leaderboard
		if err := env.Decode(&board); err != nil {
			return
		}
		s.mu.Lock()
		s.advanceTo(env.Clock)
		s.board = board
		s.mu.Unlock()

	case wire.MsgGameOver:
		var snap wire.StateSnapshot
		if err := env.Decode(&snap); err != nil {
			return
		}
		s.mu.Lock()
		s.state = snap.State
		s.final = snap.State
		s.clock = env.Clock
		s.over = true
		s.mu.Unlock()

	default:
		s.log.Warn("unexpected host message", "type", string(env.Type))
	}
}

// advanceTo replays local months until the replica clock matches the
// host clock carried on the envelope. Month rollover logic (savings
// interest, income, maturities) is identical on both sides, so catching
// up is deterministic. Callers hold mu.
func (s *Session) advanceTo(clk session.Clock) {
	if !s.ready || s.state == nil {
		return
	}
	for s.localTicks() < clk.Tick && s.state.IsStarted {
		s.state.Tick(s.cfg.YearlyIncome)
	}
	s.clock = clk
}

func (s *Session) localTicks() uint64 {
	return uint64((s.state.CurrentYear-1)*12 + s.state.CurrentMonth - 1)
}

// reconcile compares the host's post-command digest with the local one.
// Identical digests confirm the prediction; anything else, including a
// rejected command the client had already applied, adopts the host
// snapshot wholesale. There is no merge path.
func (s *Session) reconcile(ack wire.TradeAck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}
	if ack.Digest == s.state.Digest() {
		return
	}
	if ack.Snapshot != nil {
		s.log.Warn("state diverged from host, adopting snapshot",
			"command", ack.CommandID, "ok", ack.OK, "host_err", ack.Error)
		s.state = ack.Snapshot
	}
}

func (s *Session) send(t wire.MsgType, payload any) error {
	s.mu.Lock()
	clk := s.clock
	s.mu.Unlock()
	env, err := wire.NewEnvelope(t, clk, payload)
	if err != nil {
		return err
	}
	frame, err := s.ch.Seal(env)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// submit optimistically applies the command locally, records it in the
// journal, and ships it to the host. A command the local replica rejects
// is never sent: the host runs the same validation and would reject it
// identically.
func (s *Session) submit(cmd wire.TradeCommand, apply func(*portfolio.State) error) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	if s.over {
		s.mu.Unlock()
		return ErrGameOver
	}
	if err := apply(s.state); err != nil {
		s.mu.Unlock()
		return err
	}
	clk := s.clock
	s.mu.Unlock()

	cmd.CommandID = uuid.NewString()
	if err := s.journal.Append(gamelog.TradeRow{
		CommandID:     uuid.MustParse(cmd.CommandID),
		Kind:          string(cmd.Kind),
		Symbol:        cmd.Symbol,
		QuantityUnits: cmd.QuantityUnits,
		Price:         cmd.Price,
		Amount:        cmd.Amount,
		GameYear:      clk.Year,
		GameMonth:     clk.Month,
	}); err != nil {
		s.log.Warn("journal write failed", "err", err)
	}
	return s.send(wire.MsgTradeCommand, cmd)
}

func (s *Session) Buy(symbol string, qtyUnits int64) error {
	s.mu.Lock()
	price, ok := s.prices[symbol]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPriceUnknown, symbol)
	}
	return s.submit(wire.TradeCommand{
		Kind: wire.TradeBuy, Symbol: symbol, QuantityUnits: qtyUnits, Price: price,
	}, func(st *portfolio.State) error {
		return st.Buy(symbol, qtyUnits, price)
	})
}

func (s *Session) Sell(symbol string, qtyUnits int64) error {
	s.mu.Lock()
	price, ok := s.prices[symbol]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPriceUnknown, symbol)
	}
	return s.submit(wire.TradeCommand{
		Kind: wire.TradeSell, Symbol: symbol, QuantityUnits: qtyUnits, Price: price,
	}, func(st *portfolio.State) error {
		return st.Sell(symbol, qtyUnits, price)
	})
}

func (s *Session) Deposit(amount money.Money) error {
	return s.submit(wire.TradeCommand{Kind: wire.TradeDeposit, Amount: amount},
		func(st *portfolio.State) error { return st.Deposit(amount) })
}

func (s *Session) Withdraw(amount money.Money) error {
	return s.submit(wire.TradeCommand{Kind: wire.TradeWithdraw, Amount: amount},
		func(st *portfolio.State) error { return st.Withdraw(amount) })
}

func (s *Session) CreateFixedDeposit(amount money.Money, durationMonths int) error {
	s.mu.Lock()
	rate := s.cfg.SavingsRateBps
	s.mu.Unlock()
	return s.submit(wire.TradeCommand{
		Kind: wire.TradeFDCreate, Amount: amount, DurationMonths: durationMonths, RateBps: rate,
	}, func(st *portfolio.State) error {
		_, err := st.CreateFixedDeposit(amount, durationMonths, rate)
		return err
	})
}

func (s *Session) BreakFixedDeposit(id int64) error {
	return s.submit(wire.TradeCommand{Kind: wire.TradeFDBreak, FDID: id},
		func(st *portfolio.State) error {
			_, err := st.BreakFixedDeposit(id)
			return err
		})
}

func (s *Session) CollectFixedDeposit(id int64) error {
	return s.submit(wire.TradeCommand{Kind: wire.TradeFDCollect, FDID: id},
		func(st *portfolio.State) error {
			_, err := st.CollectFixedDeposit(id)
			return err
		})
}

// AnswerQuiz reports a completed quiz and clears the pending prompt.
func (s *Session) AnswerQuiz(q wire.QuizPrompt) error {
	s.mu.Lock()
	if s.state != nil {
		s.state.CompleteQuiz(q.Category)
	}
	if s.prompt != nil && s.prompt.Category == q.Category {
		s.prompt = nil
	}
	s.mu.Unlock()
	return s.send(wire.MsgQuizAnswer, wire.QuizAnswer{Category: q.Category})
}

// RequestResync asks the host for a full authoritative snapshot.
func (s *Session) RequestResync() error {
	return s.send(wire.MsgResyncReq, nil)
}

func (s *Session) Snapshot() *portfolio.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

func (s *Session) Config() (wire.SessionConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.ready
}

func (s *Session) Clock() session.Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func (s *Session) Phase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Price(symbol string) (money.Money, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[symbol]
	return p, ok
}

func (s *Session) Prices() map[string]money.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]money.Money, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

func (s *Session) Leaderboard() wire.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

func (s *Session) PendingQuiz() *wire.QuizPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prompt == nil {
		return nil
	}
	q := *s.prompt
	return &q
}

func (s *Session) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

func (s *Session) FinalState() *portfolio.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return nil
	}
	return s.final.Clone()
}

func (s *Session) PlayerID() string { return s.playerID }

func (s *Session) Journal() []gamelog.TradeRow { return s.journal.Rows() }

// Close tears the link down and wipes the channel key.
func (s *Session) Close() {
	s.ch.Close()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = s.conn.Close()
}
