package models

import (
	"sort"
	"sync"
	"time"
)

// Sequencer stamps snapshot entries as StockUpdates with a per-symbol monotonic SeqID,
// so downstream consumers can drop replays.
type Sequencer struct {
	mu  sync.Mutex
	seq map[string]int64
}

func NewSequencer() *Sequencer {
	return &Sequencer{seq: make(map[string]int64)}
}

// Updates returns one StockUpdate per snapshot entry, ordered by symbol.
func (s *Sequencer) Updates(snapshot PriceSnapshot, at time.Time) []StockUpdate {
	symbols := snapshot.Symbols()
	sort.Strings(symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StockUpdate, 0, len(symbols))
	for _, sym := range symbols {
		s.seq[sym]++
		out = append(out, StockUpdate{
			Symbol:    sym,
			Price:     snapshot[sym],
			Timestamp: at.UnixMicro(),
			SeqID:     s.seq[sym],
		})
	}
	return out
}
