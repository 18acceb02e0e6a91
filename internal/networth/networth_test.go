package networth

import (
	"fmt"
	"math"
	"testing"

	"nivesh/internal/asset"
	"nivesh/internal/money"
	"nivesh/internal/portfolio"
	"nivesh/internal/price"
)

func rupees(v int64) money.Money { return v * money.MicrosPerRupee }

func fixedPrices(m map[string]money.Money) PriceFunc {
	return func(symbol string) (money.Money, error) {
		if p, ok := m[symbol]; ok {
			return p, nil
		}
		return 0, fmt.Errorf("%w: %s", price.ErrPriceUnavailable, symbol)
	}
}

func TestComputeSumsAllBuckets(t *testing.T) {
	s := portfolio.New(rupees(100_000), 400, nil)
	if err := s.Deposit(rupees(20_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := s.CreateFixedDeposit(rupees(10_000), 12, 700); err != nil {
		t.Fatalf("fd: %v", err)
	}
	if err := s.Buy("GOLD", money.QtyScale, rupees(30_000)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	rep := Compute(s, fixedPrices(map[string]money.Money{"GOLD": rupees(33_000)}))

	// cash 40000 + savings 20000 + fd 10000 (no accrual yet) + gold 33000.
	if rep.NetWorth != rupees(103_000) {
		t.Fatalf("net worth = %d, want %d", rep.NetWorth, rupees(103_000))
	}
	if rep.Breakdown[asset.Cash] != rupees(40_000) {
		t.Fatalf("cash bucket = %d", rep.Breakdown[asset.Cash])
	}
	if rep.Breakdown[asset.Savings] != rupees(20_000) {
		t.Fatalf("savings bucket = %d", rep.Breakdown[asset.Savings])
	}
	if rep.Breakdown[asset.FixedDeposit] != rupees(10_000) {
		t.Fatalf("fd bucket = %d", rep.Breakdown[asset.FixedDeposit])
	}
	if rep.Breakdown[asset.Gold] != rupees(33_000) {
		t.Fatalf("gold bucket = %d", rep.Breakdown[asset.Gold])
	}
	if rep.ProfitLoss != rupees(3_000) {
		t.Fatalf("p/l = %d", rep.ProfitLoss)
	}
}

func TestUnavailablePriceFallsBackToCostBasis(t *testing.T) {
	s := portfolio.New(rupees(100_000), 400, nil)
	if err := s.Buy("BTC", 100, rupees(4_000_000)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	rep := Compute(s, fixedPrices(nil))
	// 60000 cash + 40000 cost basis; never a flashing zero.
	if rep.NetWorth != rupees(100_000) {
		t.Fatalf("net worth = %d, want %d", rep.NetWorth, rupees(100_000))
	}
}

func TestCAGR(t *testing.T) {
	// Doubling over 10 years ≈ 7.177% annually.
	got := CAGR(rupees(200_000), rupees(100_000), 10)
	if math.Abs(got-0.07177) > 0.0005 {
		t.Fatalf("cagr = %f", got)
	}
	// Session start: years ~ 0 must not divide by zero or blow up NaN.
	if got := CAGR(rupees(100_000), rupees(100_000), 0); got != 0 {
		t.Fatalf("flat portfolio at t=0 should be 0, got %f", got)
	}
	if got := CAGR(0, rupees(100_000), 5); got != 0 {
		t.Fatalf("zero net worth should clamp to 0, got %f", got)
	}
}
