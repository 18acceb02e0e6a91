package wire

import (
	"encoding/json"
	"fmt"

	"nivesh/internal/asset"
	"nivesh/internal/money"
	"nivesh/internal/portfolio"
	"nivesh/internal/schedule"
	"nivesh/internal/session"
)

// MsgType discriminates envelope payloads.
type MsgType string

const (
	// Host -> client.
	MsgSessionConfig MsgType = "session_config"
	MsgPriceTick     MsgType = "price_tick"
	MsgPhase         MsgType = "phase"
	MsgQuizPrompt    MsgType = "quiz_prompt"
	MsgTradeAck      MsgType = "trade_ack"
	MsgLeaderboard   MsgType = "leaderboard"
	MsgStateSnapshot MsgType = "state_snapshot"
	MsgGameOver      MsgType = "game_over"

	// Client -> host.
	MsgTradeCommand MsgType = "trade_command"
	MsgQuizAnswer   MsgType = "quiz_answer"
	MsgResyncReq    MsgType = "resync_request"
)

// Envelope is the sealed unit of transport. Seq is assigned by the
// sending channel; Clock rides on every message so a receiver can always
// tell which game month the payload belongs to.
type Envelope struct {
	Seq     uint64          `json:"seq"`
	Clock   session.Clock   `json:"clock"`
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(t MsgType, clock session.Clock, payload any) (Envelope, error) {
	env := Envelope{Clock: clock, Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Decode unmarshals the payload into out.
func (e Envelope) Decode(out any) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Handshake messages travel in plaintext before the channel exists; they
// carry only public keys and identifiers, never game data.
type Hello struct {
	PlayerID   string   `json:"player_id"`
	PlayerName string   `json:"player_name"`
	PublicKey  [32]byte `json:"public_key"`
}

type Welcome struct {
	SessionID string   `json:"session_id"`
	PublicKey [32]byte `json:"public_key"`
}

// SessionConfig is the first sealed message a client receives. It fixes
// everything the replicas must agree on for the rest of the session.
type SessionConfig struct {
	SessionID       string                 `json:"session_id"`
	Seed            int64                  `json:"seed"`
	StartYear       int                    `json:"start_year"`
	InitialCash     money.Money            `json:"initial_cash"`
	YearlyIncome    money.Money            `json:"yearly_income"`
	SavingsRateBps  int64                  `json:"savings_rate_bps"`
	EnableQuiz      bool                   `json:"enable_quiz"`
	HideCurrentYear bool                   `json:"hide_current_year"`
	Unlocks         []schedule.UnlockEvent `json:"unlocks"`
}

// PriceTick is the authoritative value of one instrument for one calendar
// month. Ticks are transient: the (symbol, year, month) triple always maps
// to the same price, whichever path it arrives by.
type PriceTick struct {
	Symbol        string      `json:"symbol"`
	CalendarYear  int         `json:"calendar_year"`
	CalendarMonth int         `json:"calendar_month"`
	Price         money.Money `json:"price"`
}

// PhaseChange announces pause/resume transitions.
type PhaseChange struct {
	Phase string `json:"phase"`
}

// QuizPrompt fires once per category at its unlock moment.
type QuizPrompt struct {
	Category      asset.Category `json:"category"`
	QuestionIndex int            `json:"question_index"`
}

// TradeKind enumerates the portfolio operations a client may submit.
type TradeKind string

const (
	TradeBuy       TradeKind = "buy"
	TradeSell      TradeKind = "sell"
	TradeDeposit   TradeKind = "deposit"
	TradeWithdraw  TradeKind = "withdraw"
	TradeFDCreate  TradeKind = "fd_create"
	TradeFDBreak   TradeKind = "fd_break"
	TradeFDCollect TradeKind = "fd_collect"
)

// TradeCommand is a client's optimistically applied operation, submitted
// for authoritative application on the host. Price is the price the client
// traded at; the host validates it against its own feed.
type TradeCommand struct {
	CommandID      string      `json:"command_id"`
	Kind           TradeKind   `json:"kind"`
	Symbol         string      `json:"symbol,omitempty"`
	QuantityUnits  int64       `json:"quantity_units,omitempty"`
	Price          money.Money `json:"price,omitempty"`
	Amount         money.Money `json:"amount,omitempty"`
	DurationMonths int         `json:"duration_months,omitempty"`
	RateBps        int64       `json:"rate_bps,omitempty"`
	FDID           int64       `json:"fd_id,omitempty"`
}

// TradeAck is the host's authoritative verdict. Digest is the hash of the
// host-side state after (or, on rejection, without) applying the command;
// a client whose own digest differs adopts Snapshot wholesale.
type TradeAck struct {
	CommandID string           `json:"command_id"`
	OK        bool             `json:"ok"`
	Error     string           `json:"error,omitempty"`
	Digest    string           `json:"digest"`
	Snapshot  *portfolio.State `json:"snapshot,omitempty"`
}

// QuizAnswer reports a completed quiz back to the host.
type QuizAnswer struct {
	Category asset.Category `json:"category"`
}

// LeaderboardRow is one entry of the host-assembled ranking.
type LeaderboardRow struct {
	Rank       int         `json:"rank"`
	PlayerID   string      `json:"player_id"`
	PlayerName string      `json:"player_name"`
	NetWorth   money.Money `json:"net_worth"`
	CAGR       float64     `json:"cagr"`
}

// Leaderboard is broadcast after every clock tick.
type Leaderboard struct {
	Rows []LeaderboardRow `json:"rows"`
}

// StateSnapshot carries a full authoritative player state, sent on resync
// requests and at session end.
type StateSnapshot struct {
	PlayerID string           `json:"player_id"`
	Digest   string           `json:"digest"`
	State    *portfolio.State `json:"state"`
}
