// Package networth derives reporting views from a player's financial
// state and current prices. Everything here is a pure function of its
// inputs: it never mutates portfolio state and never caches.
package networth

import (
	"math"
	"sort"

	"nivesh/internal/asset"
	"nivesh/internal/money"
	"nivesh/internal/portfolio"
)

// PriceFunc resolves an instrument symbol to its current price. Lookups
// that fail (no data yet) contribute the holding's cost basis instead, so
// a temporarily unavailable feed never zeroes a player's net worth.
type PriceFunc func(symbol string) (money.Money, error)

// Report is a point-in-time valuation of one player.
type Report struct {
	NetWorth   money.Money                  `json:"net_worth"`
	Breakdown  map[asset.Category]money.Money `json:"breakdown"`
	ProfitLoss money.Money                  `json:"profit_loss"`
	CAGR       float64                      `json:"cagr"`
}

// Compute values the full state: pocket cash, savings, fixed-deposit
// accruals, and holdings at current prices, grouped by category.
func Compute(s *portfolio.State, price PriceFunc) Report {
	breakdown := map[asset.Category]money.Money{
		asset.Cash:    s.PocketCash,
		asset.Savings: s.Savings.Balance,
	}

	var fds money.Money
	for _, fd := range s.FixedDeposits {
		fds += s.AccruedValue(fd)
	}
	if fds != 0 {
		breakdown[asset.FixedDeposit] = fds
	}

	for _, symbol := range sortedSymbols(s.Holdings) {
		h := s.Holdings[symbol]
		value := h.TotalInvested
		if p, err := price(symbol); err == nil {
			if v, nerr := money.Notional(p, h.QuantityUnits); nerr == nil {
				value = v
			}
		}
		breakdown[asset.CategoryOf(symbol)] += value
	}

	var total money.Money
	for _, v := range breakdown {
		total += v
	}

	report := Report{
		NetWorth:   total,
		Breakdown:  breakdown,
		ProfitLoss: total - s.PocketCashReceivedTotal,
	}
	report.CAGR = CAGR(total, s.PocketCashReceivedTotal, s.ElapsedYears())
	return report
}

// CAGR is the compound annual growth rate of net worth against total
// capital received. Years is floored to a small epsilon so a session-start
// call cannot divide by zero.
func CAGR(netWorth, totalCapital money.Money, years float64) float64 {
	if totalCapital <= 0 || netWorth <= 0 {
		return 0
	}
	const minYears = 1e-9
	if years < minYears {
		years = minYears
	}
	ratio := float64(netWorth) / float64(totalCapital)
	return math.Pow(ratio, 1/years) - 1
}

func sortedSymbols(holdings map[string]portfolio.Holding) []string {
	out := make([]string, 0, len(holdings))
	for s := range holdings {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
