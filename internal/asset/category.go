// Package asset defines the closed set of tradeable asset categories and
// the catalog mapping each category to its member instruments.
package asset

import (
	"errors"
	"fmt"
	"strings"
)

// Category is a tagged enumeration of the asset classes the game knows
// about. Unlock scheduling, quiz gating and net-worth breakdowns are all
// keyed on Category rather than on free-form strings.
type Category int

const (
	Cash Category = iota
	Savings
	FixedDeposit
	Gold
	Stocks
	MutualFunds
	IndexFunds
	Crypto
	Commodities
	REITs
	numCategories
)

var categoryNames = [numCategories]string{
	Cash:         "cash",
	Savings:      "savings",
	FixedDeposit: "fixed_deposit",
	Gold:         "gold",
	Stocks:       "stocks",
	MutualFunds:  "mutual_funds",
	IndexFunds:   "index_funds",
	Crypto:       "crypto",
	Commodities:  "commodities",
	REITs:        "reits",
}

var ErrUnknownCategory = errors.New("unknown asset category")

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// Banking reports whether the category is a bank instrument rather than a
// market-traded one. Banking categories are available from the first game
// month and never depend on price data.
func (c Category) Banking() bool {
	return c == Cash || c == Savings || c == FixedDeposit
}

// Tradeable reports whether the category holds priced instruments.
func (c Category) Tradeable() bool {
	return c.Valid() && !c.Banking()
}

func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// TradeableCategories returns the market-traded categories in order.
func TradeableCategories() []Category {
	var out []Category
	for _, c := range Categories() {
		if c.Tradeable() {
			out = append(out, c)
		}
	}
	return out
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(categoryNames[c]), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
