// Package price resolves instrument symbols and calendar dates to prices.
// CSV parsing and dataset loading live outside the core; this package only
// consumes a Dataset and layers caching, history windows, and request
// de-duplication on top of it.
package price

import (
	"errors"
	"fmt"
	"sort"

	"nivesh/internal/money"
)

var ErrPriceUnavailable = errors.New("price unavailable")

// Dataset is the narrow interface to historical price storage. A lookup is
// a pure function of (symbol, calendar year, calendar month): the same
// request signature always yields the same price.
type Dataset interface {
	// Price returns the price for a symbol in a calendar month, or false
	// when the dataset has no value for that month.
	Price(symbol string, year, month int) (money.Money, bool)
	// FirstAvailable returns the earliest (year, month) for which the
	// symbol has data, or false when the symbol is unknown.
	FirstAvailable(symbol string) (year, month int, ok bool)
}

// MonthKey orders calendar months as year*12+month-1.
func MonthKey(year, month int) int {
	return year*12 + month - 1
}

// MemoryDataset is an in-memory Dataset, keyed by symbol and month.
type MemoryDataset struct {
	prices map[string]map[int]money.Money
	first  map[string]int
}

func NewMemoryDataset() *MemoryDataset {
	return &MemoryDataset{
		prices: make(map[string]map[int]money.Money),
		first:  make(map[string]int),
	}
}

// Put records a price point. Later Puts for the same month overwrite.
func (d *MemoryDataset) Put(symbol string, year, month int, price money.Money) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month %d", month)
	}
	if price <= 0 {
		return fmt.Errorf("price must be > 0")
	}
	key := MonthKey(year, month)
	series, ok := d.prices[symbol]
	if !ok {
		series = make(map[int]money.Money)
		d.prices[symbol] = series
		d.first[symbol] = key
	}
	series[key] = price
	if key < d.first[symbol] {
		d.first[symbol] = key
	}
	return nil
}

func (d *MemoryDataset) Price(symbol string, year, month int) (money.Money, bool) {
	series, ok := d.prices[symbol]
	if !ok {
		return 0, false
	}
	p, ok := series[MonthKey(year, month)]
	return p, ok
}

func (d *MemoryDataset) FirstAvailable(symbol string) (int, int, bool) {
	key, ok := d.first[symbol]
	if !ok {
		return 0, 0, false
	}
	return key / 12, key%12 + 1, true
}

// Symbols returns the known symbols in sorted order.
func (d *MemoryDataset) Symbols() []string {
	out := make([]string, 0, len(d.prices))
	for s := range d.prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
