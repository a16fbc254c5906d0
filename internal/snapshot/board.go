package snapshot

import (
	"sort"
	"sync"

	"TradeSentinel/internal/model"
)

// Board holds the latest published run and fans it out to subscribers.
type Board struct {
	mu       sync.RWMutex
	latest   *model.RunReport
	bySymbol map[string]model.TradingSignal
	subs     map[chan model.RunReport]struct{}
}

func NewBoard() *Board {
	return &Board{
		bySymbol: map[string]model.TradingSignal{},
		subs:     map[chan model.RunReport]struct{}{},
	}
}

// Publish replaces the latest run. Signals of symbols that were not
// evaluated in this run keep their previous value. Slow subscribers miss
// the update rather than block the publisher.
func (b *Board) Publish(r model.RunReport) {
	b.mu.Lock()
	b.latest = &r
	for _, s := range r.Signals {
		b.bySymbol[s.Symbol] = s
	}
	b.mu.Unlock()

	// Sends happen under the read lock so cancel cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// Latest returns the most recent run.
func (b *Board) Latest() (model.RunReport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return model.RunReport{}, false
	}
	return *b.latest, true
}

// Signal returns the latest signal for symbol.
func (b *Board) Signal(symbol string) (model.TradingSignal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.bySymbol[symbol]
	return s, ok
}

// Signals lists the latest signal per symbol, optionally filtered by type,
// ordered by composite score distance from neutral. limit <= 0 means all.
func (b *Board) Signals(typ model.SignalType, limit int) []model.TradingSignal {
	b.mu.RLock()
	out := make([]model.TradingSignal, 0, len(b.bySymbol))
	for _, s := range b.bySymbol {
		if typ == "" || s.Type == typ {
			out = append(out, s)
		}
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		di, dj := abs(out[i].CompositeScore-50), abs(out[j].CompositeScore-50)
		if di != dj {
			return di > dj
		}
		return out[i].Symbol < out[j].Symbol
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Subscribe returns a channel receiving every published run and a cancel func.
func (b *Board) Subscribe(buffer int) (<-chan model.RunReport, func()) {
	ch := make(chan model.RunReport, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
