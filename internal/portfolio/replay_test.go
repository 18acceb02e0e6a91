package portfolio

import (
	"math/rand"
	"testing"

	"nivesh/internal/asset"
	"nivesh/internal/money"
)

// op is one recorded trade/banking action, as a client journal would
// capture it. Applying the same recorded sequence on two independently
// initialized replicas must produce identical states.
type op struct {
	kind   string
	symbol string
	qty    int64
	amount money.Money
	months int
	fdID   int64
}

func applyOp(s *State, o op) {
	switch o.kind {
	case "buy":
		_ = s.Buy(o.symbol, o.qty, o.amount)
	case "sell":
		_ = s.Sell(o.symbol, o.qty, o.amount)
	case "deposit":
		_ = s.Deposit(o.amount)
	case "withdraw":
		_ = s.Withdraw(o.amount)
	case "fd_create":
		_, _ = s.CreateFixedDeposit(o.amount, o.months, 700)
	case "fd_break":
		_, _ = s.BreakFixedDeposit(o.fdID)
	case "fd_collect":
		_, _ = s.CollectFixedDeposit(o.fdID)
	case "tick":
		_ = s.Tick(rupees(10_000))
	}
}

func recordedOps() []op {
	rng := rand.New(rand.NewSource(7))
	symbols := []string{"GOLD", "RELIANCE", "BTC", "NIFTY50"}
	durations := []int{3, 12, 24, 36}
	ops := make([]op, 0, 50)
	for i := 0; i < 50; i++ {
		switch rng.Intn(8) {
		case 0, 1:
			ops = append(ops, op{kind: "buy", symbol: symbols[rng.Intn(len(symbols))], qty: int64(rng.Intn(300) + 1), amount: rupees(int64(rng.Intn(5_000) + 100))})
		case 2:
			ops = append(ops, op{kind: "sell", symbol: symbols[rng.Intn(len(symbols))], qty: int64(rng.Intn(300) + 1), amount: rupees(int64(rng.Intn(5_000) + 100))})
		case 3:
			ops = append(ops, op{kind: "deposit", amount: rupees(int64(rng.Intn(20_000) + 1))})
		case 4:
			ops = append(ops, op{kind: "withdraw", amount: rupees(int64(rng.Intn(20_000) + 1))})
		case 5:
			ops = append(ops, op{kind: "fd_create", amount: rupees(int64(rng.Intn(10_000) + 100)), months: durations[rng.Intn(len(durations))]})
		case 6:
			ops = append(ops, op{kind: "fd_break", fdID: int64(rng.Intn(5) + 1)})
		case 7:
			ops = append(ops, op{kind: "tick"})
		}
	}
	return ops
}

func newReplica() *State {
	idx := map[asset.Category]int{asset.Gold: 2, asset.Crypto: 5}
	return New(rupees(500_000), 400, idx)
}

// Two clients applying the same 50 recorded operations in order against
// identical starting states must end byte-identical.
func TestReplayDeterminism(t *testing.T) {
	ops := recordedOps()
	host := newReplica()
	client := newReplica()
	for i, o := range ops {
		applyOp(host, o)
		applyOp(client, o)
		if host.Digest() != client.Digest() {
			t.Fatalf("replicas diverged after op %d (%s)", i, o.kind)
		}
	}
	if host.PocketCash != client.PocketCash {
		t.Fatalf("pocket cash diverged: %d vs %d", host.PocketCash, client.PocketCash)
	}
}

// Holdings invariant under arbitrary buy/sell sequences: quantity never
// negative, and a zero quantity never carries invested value.
func TestHoldingsInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	s := newReplica()
	for i := 0; i < 2_000; i++ {
		sym := []string{"GOLD", "BTC"}[rng.Intn(2)]
		qty := int64(rng.Intn(500) + 1)
		price := rupees(int64(rng.Intn(2_000) + 1))
		if rng.Intn(2) == 0 {
			_ = s.Buy(sym, qty, price)
		} else {
			_ = s.Sell(sym, qty, price)
		}
		for k, h := range s.Holdings {
			if h.QuantityUnits <= 0 {
				t.Fatalf("iteration %d: %s quantity %d retained in map", i, k, h.QuantityUnits)
			}
			if h.TotalInvested < 0 || h.AvgPrice < 0 {
				t.Fatalf("iteration %d: %s negative basis %+v", i, k, h)
			}
		}
	}
}

// FD cap invariant under random create/break/collect/tick interleavings.
func TestFDCapInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := newReplica()
	durations := []int{3, 12, 24, 36}
	for i := 0; i < 2_000; i++ {
		switch rng.Intn(4) {
		case 0:
			_, _ = s.CreateFixedDeposit(rupees(int64(rng.Intn(1_000)+1)), durations[rng.Intn(4)], 700)
		case 1:
			_, _ = s.BreakFixedDeposit(int64(rng.Intn(20) + 1))
		case 2:
			_, _ = s.CollectFixedDeposit(int64(rng.Intn(20) + 1))
		case 3:
			_ = s.Tick(0)
		}
		if len(s.FixedDeposits) > s.FDCap {
			t.Fatalf("iteration %d: %d deposits exceeds cap %d", i, len(s.FixedDeposits), s.FDCap)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := newReplica()
	if err := s.Buy("GOLD", 100, rupees(30_000)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	c := s.Clone()
	if c.Digest() != s.Digest() {
		t.Fatalf("clone must hash identically")
	}
	if err := c.Buy("GOLD", 100, rupees(30_000)); err != nil {
		t.Fatalf("buy on clone: %v", err)
	}
	if s.Holdings["GOLD"].QuantityUnits != 100 {
		t.Fatalf("mutating the clone leaked into the original")
	}
}
