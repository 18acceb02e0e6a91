// Package money provides fixed-point currency and quantity arithmetic.
// All balances are int64 micros (1 rupee = 1_000_000 micros) so that
// identical operation sequences produce identical results on every
// replica, with no floating-point rounding involved.
package money

import (
	"fmt"
	"math"
	"math/big"
)

const (
	// MicrosPerRupee is the fixed-point scale for all money fields.
	MicrosPerRupee = int64(1_000_000)

	// QtyScale is the fractional-quantity scale: 1 instrument unit is
	// represented as 10_000 quantity units, so 0.01 BTC = 100 units.
	QtyScale = int64(10_000)

	// BpsScale is the basis-point scale for interest rates: 7% = 700 bps.
	BpsScale = int64(10_000)
)

// Money is an amount in micros. Negative values mean debt.
type Money = int64

func ToMicros(rupees float64) Money {
	return int64(math.Round(rupees * float64(MicrosPerRupee)))
}

func ToRupees(m Money) float64 {
	return float64(m) / float64(MicrosPerRupee)
}

func QtyToUnits(qty float64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be > 0")
	}
	return int64(math.Round(qty * float64(QtyScale))), nil
}

func UnitsToQty(units int64) float64 {
	return float64(units) / float64(QtyScale)
}

func PctToBps(pct float64) int64 {
	return int64(math.Round(pct * 100))
}

func BpsToPct(bps int64) float64 {
	return float64(bps) / 100
}

// Notional computes priceMicros * qtyUnits / QtyScale exactly.
func Notional(priceMicros Money, qtyUnits int64) (Money, error) {
	v := new(big.Int).Mul(big.NewInt(priceMicros), big.NewInt(qtyUnits))
	v.Div(v, big.NewInt(QtyScale))
	if !v.IsInt64() {
		return 0, fmt.Errorf("notional overflow")
	}
	return v.Int64(), nil
}

// AvgPrice computes totalMicros * QtyScale / qtyUnits exactly; used to
// recompute the cost-basis-weighted average price after a buy.
func AvgPrice(totalMicros Money, qtyUnits int64) (Money, error) {
	if qtyUnits <= 0 {
		return 0, fmt.Errorf("qty must be > 0")
	}
	v := new(big.Int).Mul(big.NewInt(totalMicros), big.NewInt(QtyScale))
	v.Div(v, big.NewInt(qtyUnits))
	if !v.IsInt64() {
		return 0, fmt.Errorf("avg price overflow")
	}
	return v.Int64(), nil
}

// ProRata scales amount by num/den in exact integer arithmetic. den must
// be > 0 and num must satisfy 0 <= num <= den.
func ProRata(amount Money, num, den int64) Money {
	if den <= 0 || num <= 0 {
		return 0
	}
	if num >= den {
		return amount
	}
	v := new(big.Int).Mul(big.NewInt(amount), big.NewInt(num))
	v.Div(v, big.NewInt(den))
	return v.Int64()
}

// SimpleInterest computes amount * rateBps/BpsScale * months/12 exactly.
// Used for fixed-deposit settlement and accrual display.
func SimpleInterest(amount Money, rateBps int64, months int) Money {
	v := new(big.Int).Mul(big.NewInt(amount), big.NewInt(rateBps))
	v.Mul(v, big.NewInt(int64(months)))
	v.Div(v, big.NewInt(BpsScale*12))
	return v.Int64()
}
