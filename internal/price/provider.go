package price

import (
	"fmt"
	"sync"

	"nivesh/internal/money"
)

// Provider answers price and history queries against a Dataset. It keeps
// the last successful read per symbol so displays can show a last-known
// -good value while a fetch is outstanding, and it de-duplicates identical
// in-flight history requests so rapid re-renders do not fan out into
// redundant dataset walks.
type Provider struct {
	data Dataset

	mu       sync.Mutex
	lastGood map[string]money.Money
	inflight map[string]*historyCall
}

type historyCall struct {
	done   chan struct{}
	result []money.Money
	err    error
}

func NewProvider(data Dataset) *Provider {
	return &Provider{
		data:     data,
		lastGood: make(map[string]money.Money),
		inflight: make(map[string]*historyCall),
	}
}

// Get returns the price for (symbol, year, month). A missing data point is
// ErrPriceUnavailable, never zero: a zero would be indistinguishable from a
// real price and callers must treat "no data" as "cannot trade yet".
func (p *Provider) Get(symbol string, year, month int) (money.Money, error) {
	v, ok := p.data.Price(symbol, year, month)
	if !ok {
		return 0, fmt.Errorf("%w: %s %d-%02d", ErrPriceUnavailable, symbol, year, month)
	}
	p.mu.Lock()
	p.lastGood[symbol] = v
	p.mu.Unlock()
	return v, nil
}

// LastGood returns the most recent successful read for symbol.
func (p *Provider) LastGood(symbol string) (money.Money, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.lastGood[symbol]
	return v, ok
}

// History returns the trailing months-long price window ending at
// (year, month), most-recent-last. Months with no data are zero-filled so
// the result always has exactly `months` entries.
func (p *Provider) History(symbol string, year, month, months int) ([]money.Money, error) {
	if months <= 0 {
		return nil, fmt.Errorf("history window must be > 0")
	}
	key := fmt.Sprintf("%s/%d/%d/%d", symbol, year, month, months)

	p.mu.Lock()
	if call, ok := p.inflight[key]; ok {
		p.mu.Unlock()
		<-call.done
		return call.result, call.err
	}
	call := &historyCall{done: make(chan struct{})}
	p.inflight[key] = call
	p.mu.Unlock()

	call.result, call.err = p.history(symbol, year, month, months)
	close(call.done)

	p.mu.Lock()
	delete(p.inflight, key)
	p.mu.Unlock()
	return call.result, call.err
}

func (p *Provider) history(symbol string, year, month, months int) ([]money.Money, error) {
	out := make([]money.Money, months)
	end := MonthKey(year, month)
	for i := 0; i < months; i++ {
		key := end - (months - 1 - i)
		if key < 0 {
			continue
		}
		if v, ok := p.data.Price(symbol, key/12, key%12+1); ok {
			out[i] = v
		}
	}
	return out, nil
}
