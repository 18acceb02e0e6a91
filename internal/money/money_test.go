package money

import "testing"

func TestNotional(t *testing.T) {
	// 0.01 BTC at 4,000,000 rupees = 40,000 rupees.
	price := int64(4_000_000) * MicrosPerRupee
	qty := int64(100) // 0.01 in units
	got, err := Notional(price, qty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := int64(40_000) * MicrosPerRupee
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestAvgPrice(t *testing.T) {
	// 90,000 rupees invested across 0.02 BTC = 4,500,000 per BTC.
	total := int64(90_000) * MicrosPerRupee
	got, err := AvgPrice(total, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := int64(4_500_000) * MicrosPerRupee
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestSimpleInterest(t *testing.T) {
	tests := []struct {
		amount  int64
		rateBps int64
		months  int
		want    int64
	}{
		{50_000 * MicrosPerRupee, 700, 12, 3_500 * MicrosPerRupee},
		{50_000 * MicrosPerRupee, 700, 6, 1_750 * MicrosPerRupee},
		{10_000 * MicrosPerRupee, 650, 24, 1_300 * MicrosPerRupee},
		{10_000 * MicrosPerRupee, 650, 0, 0},
	}
	for _, tc := range tests {
		got := SimpleInterest(tc.amount, tc.rateBps, tc.months)
		if got != tc.want {
			t.Fatalf("amount=%d rate=%d months=%d got=%d want=%d",
				tc.amount, tc.rateBps, tc.months, got, tc.want)
		}
	}
}

func TestProRata(t *testing.T) {
	amount := int64(40_000) * MicrosPerRupee
	if got := ProRata(amount, 1, 2); got != 20_000*MicrosPerRupee {
		t.Fatalf("half: got %d", got)
	}
	if got := ProRata(amount, 2, 2); got != amount {
		t.Fatalf("full: got %d", got)
	}
	if got := ProRata(amount, 0, 2); got != 0 {
		t.Fatalf("zero: got %d", got)
	}
}

func TestQtyConversions(t *testing.T) {
	units, err := QtyToUnits(0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if units != 100 {
		t.Fatalf("got %d want 100", units)
	}
	if _, err := QtyToUnits(0); err == nil {
		t.Fatalf("expected zero quantity to fail")
	}
	if got := UnitsToQty(100); got != 0.01 {
		t.Fatalf("got %f want 0.01", got)
	}
}
