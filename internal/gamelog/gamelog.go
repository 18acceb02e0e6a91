// Package gamelog persists finished-game records and trade journals.
// Recording is best-effort: a session never fails because the log store
// is down, so callers log and drop errors from this package.
package gamelog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nivesh/internal/money"
)

// GameRecord is the end-of-game summary written once per player when a
// twenty-year session completes.
type GameRecord struct {
	SessionID     uuid.UUID        `json:"session_id"`
	PlayerID      string           `json:"player_id"`
	PlayerName    string           `json:"player_name"`
	Mode          string           `json:"mode"`
	FinalNetWorth money.Money      `json:"final_net_worth"`
	ProfitLoss    money.Money      `json:"profit_loss"`
	CAGR          float64          `json:"cagr"`
	Breakdown     map[string]int64 `json:"breakdown"`
	Settings      map[string]any   `json:"settings"`
	Duration      time.Duration    `json:"duration"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// TradeRow is one executed operation from a player's local journal,
// uploaded in bulk at the end of the game.
type TradeRow struct {
	CommandID     uuid.UUID   `json:"command_id"`
	Kind          string      `json:"kind"`
	Symbol        string      `json:"symbol"`
	QuantityUnits int64       `json:"quantity_units"`
	Price         money.Money `json:"price"`
	Amount        money.Money `json:"amount"`
	GameYear      int         `json:"game_year"`
	GameMonth     int         `json:"game_month"`
}

// Sink receives finished-game records and trade journals.
type Sink interface {
	RecordGame(ctx context.Context, rec GameRecord) error
	RecordTrades(ctx context.Context, sessionID uuid.UUID, playerID string, trades []TradeRow) error
	Close()
}

// Noop discards everything; used when no DATABASE_URL is configured.
type Noop struct{}

func (Noop) RecordGame(context.Context, GameRecord) error { return nil }

func (Noop) RecordTrades(context.Context, uuid.UUID, string, []TradeRow) error { return nil }

func (Noop) Close() {}
