package host

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"nivesh/internal/wire"
)

const handshakeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Clients are local CLIs, not browsers; there is no origin to check.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the connection, runs the key handshake, and then
// pumps sealed client messages until the connection drops. The handshake
// is fail-closed: any error before the channel is established terminates
// the connection, there is no plaintext fallback.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	p, err := h.handshake(conn)
	if err != nil {
		h.log.Warn("handshake failed", "remote", conn.RemoteAddr().String(), "err", err)
		_ = conn.Close()
		return
	}

	h.log.Info("player joined", "session", h.id, "player", p.id, "name", p.name)

	if err := h.sendJoinState(p); err != nil {
		h.log.Warn("initial sync failed", "player", p.id, "err", err)
		_ = conn.Close()
		h.removePlayer(p.id)
		return
	}
	h.promptBacklogQuizzes(p)

	h.readLoop(p)
}

func (h *Hub) handshake(conn *websocket.Conn) (*player, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))

	var hello wire.Hello
	if err := conn.ReadJSON(&hello); err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}
	hello.PlayerID = strings.TrimSpace(hello.PlayerID)
	hello.PlayerName = strings.TrimSpace(hello.PlayerName)
	if hello.PlayerID == "" {
		return nil, fmt.Errorf("hello: player id is required")
	}
	if hello.PlayerName == "" {
		hello.PlayerName = hello.PlayerID
	}

	kp, err := wire.NewKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	ch := &wire.Channel{}
	if err := ch.Establish(kp, hello.PublicKey); err != nil {
		return nil, fmt.Errorf("establish channel: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(handshakeWait))
	welcome := wire.Welcome{SessionID: h.id.String(), PublicKey: kp.Public}
	if err := conn.WriteJSON(welcome); err != nil {
		return nil, fmt.Errorf("write welcome: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	p := &player{
		id:    hello.PlayerID,
		name:  hello.PlayerName,
		conn:  conn,
		ch:    ch,
		acked: make(map[string]wire.TradeAck),
	}
	if err := h.addPlayer(p); err != nil {
		return nil, err
	}
	return p, nil
}

// sendJoinState delivers the sealed session config and the player's
// authoritative starting snapshot.
func (h *Hub) sendJoinState(p *player) error {
	clk := h.coord.Clock()
	cfg := wire.SessionConfig{
		SessionID:       h.id.String(),
		Seed:            h.cfg.Seed,
		StartYear:       h.cfg.StartYear,
		InitialCash:     h.cfg.InitialCashMicros(),
		YearlyIncome:    h.cfg.YearlyIncomeMicros(),
		SavingsRateBps:  h.cfg.SavingsRateBps,
		EnableQuiz:      h.cfg.EnableQuiz,
		HideCurrentYear: h.cfg.HideCurrentYear,
		Unlocks:         h.sched.Events(),
	}
	env, err := wire.NewEnvelope(wire.MsgSessionConfig, clk, cfg)
	if err != nil {
		return err
	}
	if err := p.writeSealed(env); err != nil {
		return err
	}
	snap, err := h.snapshot(p)
	if err != nil {
		return err
	}
	return p.writeSealed(snap)
}

func (h *Hub) readLoop(p *player) {
	defer func() {
		_ = p.conn.Close()
		h.removePlayer(p.id)
	}()

	for {
		kind, frame, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("read failed", "player", p.id, "err", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		env, gap, err := p.ch.Open(frame)
		if err != nil {
			h.log.Warn("reject frame", "player", p.id, "err", err)
			return
		}
		if gap > 0 {
			h.log.Warn("missed client frames", "player", p.id, "gap", gap)
		}
		h.dispatch(p, env)
	}
}

func (h *Hub) dispatch(p *player, env wire.Envelope) {
	switch env.Type {
	case wire.MsgTradeCommand:
		var cmd wire.TradeCommand
		if err := env.Decode(&cmd); err != nil {
			h.log.Warn("bad trade command", "player", p.id, "err", err)
			return
		}
		ack := h.applyTrade(p, cmd)
		out, err := wire.NewEnvelope(wire.MsgTradeAck, h.coord.Clock(), ack)
		if err != nil {
			h.log.Error("encode trade ack", "err", err)
			return
		}
		if err := p.writeSealed(out); err != nil {
			h.log.Warn("trade ack failed", "player", p.id, "err", err)
		}
	case wire.MsgQuizAnswer:
		var ans wire.QuizAnswer
		if err := env.Decode(&ans); err != nil {
			h.log.Warn("bad quiz answer", "player", p.id, "err", err)
			return
		}
		h.completeQuiz(p, ans)
	case wire.MsgResyncReq:
		out, err := h.snapshot(p)
		if err != nil {
			h.log.Error("encode snapshot", "err", err)
			return
		}
		if err := p.writeSealed(out); err != nil {
			h.log.Warn("resync failed", "player", p.id, "err", err)
		}
	default:
		h.log.Warn("unexpected message", "player", p.id, "type", string(env.Type))
	}
}
