package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nivesh/internal/gamelog"
	"nivesh/internal/wire"
)

// Control talks to the host's HTTP endpoints: session info, the
// leaderboard, the facilitator pause switch, and the end-of-game trade
// upload. The game protocol itself never runs over this client.
type Control struct {
	BaseURL    string
	AdminToken string
	HTTP       *http.Client
}

func NewControl(baseURL, adminToken string) *Control {
	return &Control{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: adminToken,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type SessionInfo struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
	Tick      uint64 `json:"tick"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
}

func (c *Control) SessionInfo(ctx context.Context) (SessionInfo, error) {
	var out SessionInfo
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/session", nil, &out)
	return out, err
}

func (c *Control) Leaderboard(ctx context.Context) (wire.Leaderboard, error) {
	var out wire.Leaderboard
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard", nil, &out)
	return out, err
}

// PriceWindow is the host's trailing price view for one symbol. Prices
// are micros; months before the instrument has data are zero.
type PriceWindow struct {
	Symbol string  `json:"symbol"`
	Months int     `json:"months"`
	Prices []int64 `json:"prices"`
}

func (c *Control) PriceHistory(ctx context.Context, symbol string, months int) (PriceWindow, error) {
	var out PriceWindow
	path := fmt.Sprintf("/v1/prices/%s/history?months=%d", url.PathEscape(symbol), months)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Control) Pause(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/session/pause", map[string]any{}, nil)
}

func (c *Control) Resume(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/session/resume", map[string]any{}, nil)
}

// UploadTrades bulk-ships the local journal, keyed by the session id the
// host issued at handshake. Rows the host already recorded are dropped
// server-side, so re-uploading after a crash is safe.
func (c *Control) UploadTrades(ctx context.Context, sessionID, playerID string, trades []gamelog.TradeRow) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/sync/trades", map[string]any{
		"session_id": sessionID,
		"player_id":  playerID,
		"trades":     trades,
	}, nil)
}

func (c *Control) jsonRequest(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("host status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
