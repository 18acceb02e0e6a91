package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"nivesh/internal/asset"
	"nivesh/internal/money"
)

// GameSettings is the facilitator-authored session configuration. Money
// fields are written in whole rupees and converted to micros on load.
type GameSettings struct {
	StartYear         int                 `yaml:"start_year"`
	Seed              int64               `yaml:"seed"`
	InitialPocketCash int64               `yaml:"initial_pocket_cash"`
	YearlyIncome      int64               `yaml:"yearly_income"`
	SavingsRateBps    int64               `yaml:"savings_rate_bps"`
	EnableQuiz        bool                `yaml:"enable_quiz"`
	HideCurrentYear   bool                `yaml:"hide_current_year"`
	Selections        map[string][]string `yaml:"selections"`
}

// LoadGameSettings reads settings from a YAML file, then applies
// environment variable overrides and defaults.
func LoadGameSettings(path string) (GameSettings, error) {
	var gs GameSettings

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return gs, fmt.Errorf("read settings: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &gs); err != nil {
			return gs, fmt.Errorf("parse settings: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("NIVESH_START_YEAR")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			gs.StartYear = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("NIVESH_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			gs.Seed = n
		}
	}

	if gs.StartYear == 0 {
		gs.StartYear = 2003
	}
	if gs.InitialPocketCash == 0 {
		gs.InitialPocketCash = 100_000
	}
	if gs.SavingsRateBps == 0 {
		gs.SavingsRateBps = 400
	}
	if gs.Selections == nil {
		gs.Selections = defaultSelections()
	}

	return gs, gs.Validate()
}

func (gs GameSettings) Validate() error {
	if gs.StartYear < 1990 || gs.StartYear > 2100 {
		return fmt.Errorf("start_year %d out of range", gs.StartYear)
	}
	if gs.InitialPocketCash <= 0 {
		return fmt.Errorf("initial_pocket_cash must be positive")
	}
	if gs.YearlyIncome < 0 {
		return fmt.Errorf("yearly_income must not be negative")
	}
	if gs.SavingsRateBps < 0 || gs.SavingsRateBps > money.BpsScale {
		return fmt.Errorf("savings_rate_bps %d out of range", gs.SavingsRateBps)
	}
	for cat, symbols := range gs.Selections {
		c, err := asset.ParseCategory(cat)
		if err != nil {
			return fmt.Errorf("selections: %w", err)
		}
		for _, sym := range symbols {
			inst, err := asset.Lookup(sym)
			if err != nil {
				return fmt.Errorf("selections: %w", err)
			}
			if inst.Category != c {
				return fmt.Errorf("selections: %s is not a %s instrument", sym, c)
			}
		}
	}
	return nil
}

// InitialCashMicros returns the starting pocket cash in micros.
func (gs GameSettings) InitialCashMicros() money.Money {
	return money.Money(gs.InitialPocketCash) * money.MicrosPerRupee
}

// YearlyIncomeMicros returns the recurring yearly income in micros.
func (gs GameSettings) YearlyIncomeMicros() money.Money {
	return money.Money(gs.YearlyIncome) * money.MicrosPerRupee
}

// CategorySelections converts the string-keyed YAML selections into the
// closed category enum. Validate must have accepted the settings first.
func (gs GameSettings) CategorySelections() map[asset.Category][]string {
	out := make(map[asset.Category][]string, len(gs.Selections))
	for cat, symbols := range gs.Selections {
		c, err := asset.ParseCategory(cat)
		if err != nil {
			continue
		}
		out[c] = append(out[c], symbols...)
	}
	return out
}

func defaultSelections() map[string][]string {
	out := make(map[string][]string)
	for _, c := range asset.Categories() {
		if !c.Tradeable() {
			continue
		}
		for _, inst := range asset.Members(c) {
			out[c.String()] = append(out[c.String()], inst.Symbol)
		}
	}
	return out
}
