package portfolio

import "nivesh/internal/money"

// Tick advances the player's clock by one game month and applies the
// time-driven effects: fixed deposits flip to matured exactly when their
// elapsed months reach the term, savings earn a year of interest on each
// year rollover, and the recurring income credit lands with the new year.
// The caller (session coordinator) is responsible for not ticking while
// paused. Returns false once the 20-year session is over.
func (s *State) Tick(yearlyIncome money.Money) bool {
	if s.Ended() {
		return false
	}
	if s.CurrentYear == gameYears && s.CurrentMonth == 12 {
		s.IsStarted = false
		return false
	}

	s.CurrentMonth++
	if s.CurrentMonth > 12 {
		s.CurrentMonth = 1
		s.CurrentYear++
		if s.Savings.Balance > 0 && s.Savings.RateBps > 0 {
			s.Savings.Balance += money.SimpleInterest(s.Savings.Balance, s.Savings.RateBps, 12)
		}
		if yearlyIncome > 0 {
			s.PocketCash += yearlyIncome
			s.PocketCashReceivedTotal += yearlyIncome
		}
	}
	s.sweepMaturities()
	return true
}

// sweepMaturities marks deposits whose term has elapsed. IsMatured flips
// exactly once; collection removes the entry.
func (s *State) sweepMaturities() {
	for i := range s.FixedDeposits {
		fd := &s.FixedDeposits[i]
		if fd.IsMatured {
			continue
		}
		elapsed := (s.CurrentYear-fd.StartYear)*12 + (s.CurrentMonth - fd.StartMonth)
		if elapsed >= fd.DurationMonths {
			fd.IsMatured = true
		}
	}
}

// ElapsedYears is the number of whole and fractional game years since the
// session began, used by reporting to annualize returns.
func (s *State) ElapsedYears() float64 {
	months := (s.CurrentYear-1)*12 + (s.CurrentMonth - 1)
	return float64(months) / 12
}
