package gamelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres writes game records and trade journals to two append-only
// tables. Schema is created on first connect so a fresh database works
// without a migration step.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS game_records (
    id              BIGSERIAL PRIMARY KEY,
    session_id      UUID        NOT NULL,
    player_id       TEXT        NOT NULL,
    player_name     TEXT        NOT NULL,
    mode            TEXT        NOT NULL,
    final_net_worth BIGINT      NOT NULL,
    profit_loss     BIGINT      NOT NULL,
    cagr            DOUBLE PRECISION NOT NULL,
    breakdown       JSONB       NOT NULL,
    settings        JSONB       NOT NULL,
    duration_secs   BIGINT      NOT NULL,
    finished_at     TIMESTAMPTZ NOT NULL,
    UNIQUE (session_id, player_id)
);
CREATE TABLE IF NOT EXISTS game_trades (
    id             BIGSERIAL PRIMARY KEY,
    session_id     UUID   NOT NULL,
    player_id      TEXT   NOT NULL,
    command_id     UUID   NOT NULL UNIQUE,
    kind           TEXT   NOT NULL,
    symbol         TEXT   NOT NULL,
    quantity_units BIGINT NOT NULL,
    price          BIGINT NOT NULL,
    amount         BIGINT NOT NULL,
    game_year      INT    NOT NULL,
    game_month     INT    NOT NULL
);`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure gamelog schema: %w", err)
	}
	return nil
}

func (p *Postgres) RecordGame(ctx context.Context, rec GameRecord) error {
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	settings, err := json.Marshal(rec.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO game_records
    (session_id, player_id, player_name, mode, final_net_worth, profit_loss,
     cagr, breakdown, settings, duration_secs, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (session_id, player_id) DO NOTHING`,
		rec.SessionID, rec.PlayerID, rec.PlayerName, rec.Mode,
		rec.FinalNetWorth, rec.ProfitLoss, rec.CAGR,
		breakdown, settings, int64(rec.Duration.Seconds()), rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert game record: %w", err)
	}
	return nil
}

func (p *Postgres) RecordTrades(ctx context.Context, sessionID uuid.UUID, playerID string, trades []TradeRow) error {
	if len(trades) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
INSERT INTO game_trades
    (session_id, player_id, command_id, kind, symbol, quantity_units,
     price, amount, game_year, game_month)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (command_id) DO NOTHING`,
			sessionID, playerID, t.CommandID, t.Kind, t.Symbol,
			t.QuantityUnits, t.Price, t.Amount, t.GameYear, t.GameMonth)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range trades {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
