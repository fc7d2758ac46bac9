package refresher

import (
	"context"
	"time"

	"github.com/shubham-shewale/market-data-relay/pkg/models"
)

// SymbolSource yields the symbols currently worth tracking.
type SymbolSource interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
}

type MarketOracle interface {
	IsOpen(now time.Time) bool
}

type BulkFetcher interface {
	Fetch(ctx context.Context, symbols []string) map[string]float64
}

type Broadcaster interface {
	Broadcast(payload []byte) int
}

// SnapshotPublisher mirrors a cycle's snapshot to an external system.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot models.PriceSnapshot) error
}

// for deterministic testing
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
