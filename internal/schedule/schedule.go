// Package schedule computes the asset-unlock timetable for a session.
// The schedule is built exactly once from admin settings plus dataset
// availability and is immutable afterwards: host and clients constructing
// it from the same inputs get the same timetable, so unlock checks never
// need to cross the wire.
package schedule

import (
	"fmt"
	mathrand "math/rand"
	"sort"

	"nivesh/internal/asset"
	"nivesh/internal/price"
)

const (
	// GameYears is the length of a session in game years.
	GameYears = 20
)

// unlockYearFor is the canonical game year each tradeable category becomes
// eligible. Eligibility is still gated on price data existing for at least
// one selected instrument.
var unlockYearFor = map[asset.Category]int{
	asset.Gold:        1,
	asset.Stocks:      2,
	asset.Commodities: 4,
	asset.MutualFunds: 6,
	asset.IndexFunds:  6,
	asset.REITs:       8,
	asset.Crypto:      10,
}

// Settings are the admin-chosen schedule inputs.
type Settings struct {
	// StartCalendarYear is the real-world year game year 1 maps to.
	StartCalendarYear int
	// Selections maps each tradeable category to the instrument symbols
	// the admin enabled. A category with no selections never unlocks.
	Selections map[asset.Category][]string
}

// UnlockEvent is the single moment a category becomes tradeable.
type UnlockEvent struct {
	Category      asset.Category `json:"category"`
	Symbols       []string       `json:"symbols"`
	GameYear      int            `json:"game_year"`
	GameMonth     int            `json:"game_month"`
	CalendarYear  int            `json:"calendar_year"`
	CalendarMonth int            `json:"calendar_month"`
}

// Schedule is the immutable unlock timetable for one session.
type Schedule struct {
	startYear int
	// unlockAt maps category -> calendar month key of its unlock moment.
	// Categories absent from the map never unlock.
	unlockAt map[asset.Category]int
	events   []UnlockEvent
}

// Build constructs the timetable. For each selected category the unlock
// moment is the later of (canonical unlock year, month 1) and the earliest
// first-data-availability month among the selected instruments. Moments
// falling after the 20-year window are dropped: the category stays locked
// for the whole session.
func Build(s Settings, data price.Dataset) (*Schedule, error) {
	if s.StartCalendarYear <= 0 {
		return nil, fmt.Errorf("start calendar year is required")
	}
	sch := &Schedule{
		startYear: s.StartCalendarYear,
		unlockAt:  make(map[asset.Category]int),
	}
	sessionEnd := price.MonthKey(s.StartCalendarYear+GameYears-1, 12)

	for _, cat := range asset.TradeableCategories() {
		symbols := append([]string(nil), s.Selections[cat]...)
		if len(symbols) == 0 {
			continue
		}
		sort.Strings(symbols)

		earliest := -1
		for _, sym := range symbols {
			if _, err := asset.Lookup(sym); err != nil {
				return nil, err
			}
			y, m, ok := data.FirstAvailable(sym)
			if !ok {
				continue
			}
			key := price.MonthKey(y, m)
			if earliest < 0 || key < earliest {
				earliest = key
			}
		}
		if earliest < 0 {
			// No price data for any selected instrument: stays locked.
			continue
		}

		eligible := price.MonthKey(s.StartCalendarYear+unlockYearFor[cat]-1, 1)
		at := eligible
		if earliest > at {
			at = earliest
		}
		if at > sessionEnd {
			continue
		}
		sch.unlockAt[cat] = at

		gameKey := at - price.MonthKey(s.StartCalendarYear, 1)
		sch.events = append(sch.events, UnlockEvent{
			Category:      cat,
			Symbols:       symbols,
			GameYear:      gameKey/12 + 1,
			GameMonth:     gameKey%12 + 1,
			CalendarYear:  at / 12,
			CalendarMonth: at%12 + 1,
		})
	}

	sort.Slice(sch.events, func(i, j int) bool {
		a, b := sch.events[i], sch.events[j]
		if a.GameYear != b.GameYear {
			return a.GameYear < b.GameYear
		}
		if a.GameMonth != b.GameMonth {
			return a.GameMonth < b.GameMonth
		}
		return a.Category < b.Category
	})
	return sch, nil
}

// Calendar maps a game clock position to its real-world year and month.
func (s *Schedule) Calendar(gameYear, gameMonth int) (int, int) {
	return s.startYear + gameYear - 1, gameMonth
}

func (s *Schedule) calKey(gameYear, gameMonth int) int {
	y, m := s.Calendar(gameYear, gameMonth)
	return price.MonthKey(y, m)
}

// IsUnlocked reports whether the category is tradeable at the given game
// clock position. Banking categories are always available. Once true for a
// position, it is true for every later position.
func (s *Schedule) IsUnlocked(cat asset.Category, gameYear, gameMonth int) bool {
	if cat.Banking() {
		return true
	}
	at, ok := s.unlockAt[cat]
	if !ok {
		return false
	}
	return s.calKey(gameYear, gameMonth) >= at
}

// IsUnlockingNow reports whether this exact game month is the category's
// unlock moment. Each category has at most one such moment per session,
// which is what fires its one-time education prompt.
func (s *Schedule) IsUnlockingNow(cat asset.Category, gameYear, gameMonth int) bool {
	at, ok := s.unlockAt[cat]
	if !ok {
		return false
	}
	return s.calKey(gameYear, gameMonth) == at
}

// Events returns the unlock events in chronological order.
func (s *Schedule) Events() []UnlockEvent {
	out := make([]UnlockEvent, len(s.events))
	copy(out, s.events)
	return out
}

// EventsForYear returns the unlock events of one game year, in order.
func (s *Schedule) EventsForYear(gameYear int) []UnlockEvent {
	var out []UnlockEvent
	for _, ev := range s.events {
		if ev.GameYear == gameYear {
			out = append(out, ev)
		}
	}
	return out
}

// QuestionBankSize is the number of questions per category both sides
// draw quiz indices from.
const QuestionBankSize = 10

// QuizIndices deterministically assigns one quiz-question index per
// category from the shared session seed. Host and clients must call this
// with the same seed and questionCount; no replica may redraw mid-session.
func QuizIndices(seed int64, questionCount int) map[asset.Category]int {
	if questionCount <= 0 {
		questionCount = 1
	}
	rng := mathrand.New(mathrand.NewSource(seed))
	out := make(map[asset.Category]int)
	for _, cat := range asset.Categories() {
		out[cat] = rng.Intn(questionCount)
	}
	return out
}
