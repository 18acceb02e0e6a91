package config

import (
	"os"
	"path/filepath"
	"testing"

	"nivesh/internal/asset"
	"nivesh/internal/money"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestLoadGameSettingsDefaults(t *testing.T) {
	gs, err := LoadGameSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gs.StartYear != 2003 {
		t.Fatalf("start year = %d", gs.StartYear)
	}
	if gs.InitialPocketCash != 100_000 {
		t.Fatalf("initial cash = %d", gs.InitialPocketCash)
	}
	if gs.SavingsRateBps != 400 {
		t.Fatalf("savings rate = %d", gs.SavingsRateBps)
	}
	if len(gs.Selections) == 0 {
		t.Fatalf("default selections are empty")
	}
	if gs.InitialCashMicros() != 100_000*money.MicrosPerRupee {
		t.Fatalf("initial cash micros = %d", gs.InitialCashMicros())
	}
}

func TestLoadGameSettingsFromFile(t *testing.T) {
	path := writeSettings(t, `
start_year: 2010
seed: 7
initial_pocket_cash: 250000
yearly_income: 60000
savings_rate_bps: 550
enable_quiz: true
hide_current_year: true
selections:
  gold: [GOLD]
  crypto: [BTC, ETH]
`)
	gs, err := LoadGameSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gs.StartYear != 2010 || gs.Seed != 7 || !gs.EnableQuiz || !gs.HideCurrentYear {
		t.Fatalf("settings = %+v", gs)
	}
	sel := gs.CategorySelections()
	if len(sel[asset.Crypto]) != 2 {
		t.Fatalf("crypto selections = %v", sel[asset.Crypto])
	}
	if len(sel[asset.Gold]) != 1 {
		t.Fatalf("gold selections = %v", sel[asset.Gold])
	}
}

func TestLoadGameSettingsEnvOverride(t *testing.T) {
	t.Setenv("NIVESH_START_YEAR", "1999")
	t.Setenv("NIVESH_SEED", "123")
	path := writeSettings(t, "start_year: 2010\n")
	gs, err := LoadGameSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gs.StartYear != 1999 || gs.Seed != 123 {
		t.Fatalf("override not applied: %+v", gs)
	}
}

func TestValidateRejectsBadSelections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown category", "selections:\n  bonds: [GOLD]\n"},
		{"unknown symbol", "selections:\n  gold: [UNOBTANIUM]\n"},
		{"category mismatch", "selections:\n  gold: [BTC]\n"},
		{"negative income", "yearly_income: -1\n"},
		{"rate out of range", "savings_rate_bps: 20000\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadGameSettings(writeSettings(t, tc.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadHostFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("NIVESH_TICK_EVERY", "30s")
	cfg, err := LoadHostFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.TickEvery.Seconds() != 30 {
		t.Fatalf("tick every = %v", cfg.TickEvery)
	}
}

func TestLoadHostRejectsSubSecondTick(t *testing.T) {
	t.Setenv("NIVESH_TICK_EVERY", "100ms")
	if _, err := LoadHostFromEnv(); err == nil {
		t.Fatalf("expected error for sub-second tick")
	}
}
