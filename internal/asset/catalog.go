package asset

import (
	"errors"
	"fmt"
)

// ErrUnknownInstrument reports a symbol absent from the catalog.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Instrument is a single tradeable asset identified by symbol.
type Instrument struct {
	Symbol      string
	DisplayName string
	Category    Category
}

// catalog is the full instrument universe. Admin settings select a subset
// per category; the schedule engine intersects those selections with price
// data availability.
var catalog = []Instrument{
	{Symbol: "GOLD", DisplayName: "Gold (10g)", Category: Gold},

	{Symbol: "RELIANCE", DisplayName: "Reliance Industries", Category: Stocks},
	{Symbol: "TCS", DisplayName: "Tata Consultancy Services", Category: Stocks},
	{Symbol: "HDFCBANK", DisplayName: "HDFC Bank", Category: Stocks},
	{Symbol: "INFY", DisplayName: "Infosys", Category: Stocks},
	{Symbol: "ITC", DisplayName: "ITC", Category: Stocks},

	{Symbol: "BLUECHIP", DisplayName: "Bluechip Equity Fund", Category: MutualFunds},
	{Symbol: "FLEXICAP", DisplayName: "Flexicap Growth Fund", Category: MutualFunds},
	{Symbol: "MIDCAPOP", DisplayName: "Midcap Opportunities Fund", Category: MutualFunds},

	{Symbol: "NIFTY50", DisplayName: "Nifty 50 Index Fund", Category: IndexFunds},
	{Symbol: "SENSEX30", DisplayName: "Sensex 30 Index Fund", Category: IndexFunds},

	{Symbol: "BTC", DisplayName: "Bitcoin", Category: Crypto},
	{Symbol: "ETH", DisplayName: "Ethereum", Category: Crypto},

	{Symbol: "SILVER", DisplayName: "Silver (1kg)", Category: Commodities},
	{Symbol: "CRUDEOIL", DisplayName: "Crude Oil", Category: Commodities},

	{Symbol: "EMBASSY", DisplayName: "Embassy Office Parks REIT", Category: REITs},
	{Symbol: "MINDSPACE", DisplayName: "Mindspace Business Parks REIT", Category: REITs},
}

var bySymbol = func() map[string]Instrument {
	m := make(map[string]Instrument, len(catalog))
	for _, in := range catalog {
		m[in.Symbol] = in
	}
	return m
}()

// Lookup resolves a symbol to its catalog entry.
func Lookup(symbol string) (Instrument, error) {
	in, ok := bySymbol[symbol]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, symbol)
	}
	return in, nil
}

// CategoryOf returns the category for a known symbol, or Cash for unknown
// symbols so callers can still bucket stray keys somewhere visible.
func CategoryOf(symbol string) Category {
	if in, ok := bySymbol[symbol]; ok {
		return in.Category
	}
	return Cash
}

// Members returns the catalog instruments of a category in catalog order.
func Members(c Category) []Instrument {
	var out []Instrument
	for _, in := range catalog {
		if in.Category == c {
			out = append(out, in)
		}
	}
	return out
}

// All returns the full catalog in declaration order.
func All() []Instrument {
	out := make([]Instrument, len(catalog))
	copy(out, catalog)
	return out
}
