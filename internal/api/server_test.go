package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"nivesh/internal/config"
	"nivesh/internal/gamelog"
	"nivesh/internal/host"
	"nivesh/internal/money"
	"nivesh/internal/price"
)

func testServer(t *testing.T, adminToken string) (*Server, *host.Hub) {
	t.Helper()
	ds := price.NewMemoryDataset()
	for y := 2003; y <= 2023; y++ {
		for m := 1; m <= 12; m++ {
			if err := ds.Put("GOLD", y, m, 5_000*money.MicrosPerRupee); err != nil {
				t.Fatalf("put: %v", err)
			}
		}
	}
	settings := config.GameSettings{
		StartYear:         2003,
		InitialPocketCash: 100_000,
		SavingsRateBps:    400,
		Selections:        map[string][]string{"gold": {"GOLD"}},
	}
	hub, err := host.NewHub(settings, ds, gamelog.Noop{}, slog.Default())
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	cfg := config.HostConfig{Addr: ":0", AdminToken: adminToken}
	return New(cfg, slog.Default(), hub, gamelog.Noop{}), hub
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSessionInfo(t *testing.T) {
	s, hub := testServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		SessionID string `json:"session_id"`
		Phase     string `json:"phase"`
		Year      int    `json:"year"`
		Month     int    `json:"month"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID != hub.ID().String() {
		t.Fatalf("session id = %q", out.SessionID)
	}
	if out.Phase != "running" || out.Year != 1 || out.Month != 1 {
		t.Fatalf("info = %+v", out)
	}
}

func TestPauseRequiresAdminToken(t *testing.T) {
	s, hub := testServer(t, "sekrit")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session/pause", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/session/pause", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if hub.Phase().String() != "paused_host" {
		t.Fatalf("phase = %s", hub.Phase())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/session/resume", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: status = %d", rec.Code)
	}
	if hub.Phase().String() != "running" {
		t.Fatalf("phase = %s", hub.Phase())
	}
}

func TestPriceHistory(t *testing.T) {
	s, _ := testServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/prices/GOLD/history?months=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Symbol string  `json:"symbol"`
		Prices []int64 `json:"prices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Symbol != "GOLD" || len(out.Prices) != 3 {
		t.Fatalf("window = %+v", out)
	}
	// Game starts at 2003-01; the two months before it have no data.
	if out.Prices[0] != 0 || out.Prices[1] != 0 {
		t.Fatalf("pre-data months = %v", out.Prices[:2])
	}
	if got := out.Prices[2]; got != 5_000*money.MicrosPerRupee {
		t.Fatalf("current price = %d", got)
	}
}

func TestPriceHistoryUnknownSymbol(t *testing.T) {
	s, _ := testServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/prices/NOPE/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSyncTradesRejectsUnknownSession(t *testing.T) {
	s, _ := testServer(t, "")
	body := `{"session_id":"` + uuid.NewString() + `","player_id":"p1","trades":[]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/sync/trades", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSyncTradesAcceptsOwnSession(t *testing.T) {
	s, hub := testServer(t, "")
	body := `{"session_id":"` + hub.ID().String() + `","player_id":"p1","trades":[]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/sync/trades", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
