// Package refresher drives the periodic price refresh and pushes each cycle's
// snapshot to subscribers.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/pricecache"
	"github.com/shubham-shewale/market-data-relay/pkg/models"
)

type Refresher struct {
	symbols     SymbolSource
	oracle      MarketOracle
	fetcher     BulkFetcher
	cache       *pricecache.Cache
	broadcaster Broadcaster
	publishers  []SnapshotPublisher
	interval    time.Duration
	clock       Clock
	logger      *zap.Logger
}

type Option func(*Refresher)

func WithClock(c Clock) Option {
	return func(r *Refresher) { r.clock = c }
}

// WithPublishers adds mirrors that receive every broadcast snapshot after subscribers do.
func WithPublishers(p ...SnapshotPublisher) Option {
	return func(r *Refresher) { r.publishers = append(r.publishers, p...) }
}

func New(
	symbols SymbolSource,
	oracle MarketOracle,
	fetcher BulkFetcher,
	cache *pricecache.Cache,
	broadcaster Broadcaster,
	interval time.Duration,
	logger *zap.Logger,
	opts ...Option,
) *Refresher {
	r := &Refresher{
		symbols:     symbols,
		oracle:      oracle,
		fetcher:     fetcher,
		cache:       cache,
		broadcaster: broadcaster,
		interval:    interval,
		clock:       RealClock{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run repeats RunCycle, sleeping the interval after each one, until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("Refresh loop started", zap.Duration("interval", r.interval))

	for ctx.Err() == nil {
		r.RunCycle(ctx)

		select {
		case <-ctx.Done():
		case <-r.clock.After(r.interval):
		}
	}

	r.logger.Info("Refresh loop stopped")
}

// RunCycle performs one refresh and returns the snapshot it broadcast, or nil if nothing was sent.
// Failures in any step are logged and end the cycle early; they never escape.
func (r *Refresher) RunCycle(ctx context.Context) (sent models.PriceSnapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Refresh cycle panicked", zap.Any("panic", rec))
			sent = nil
		}
	}()

	start := r.clock.Now()

	active, err := r.symbols.ActiveSymbols(ctx)
	if err != nil {
		r.logger.Warn("Could not fetch active symbols", zap.Error(err))
		return nil
	}
	if len(active) == 0 {
		r.logger.Debug("No active symbols")
		return nil
	}

	open := r.oracle.IsOpen(start)
	needed := NeedsFetch(active, open, r.cache)

	fetched := 0
	if len(needed) > 0 {
		prices := r.fetcher.Fetch(ctx, needed)
		r.cache.Merge(prices)
		fetched = len(prices)
	}

	snapshot := r.cache.Snapshot(active)
	if len(snapshot) == 0 {
		r.logger.Debug("Nothing to broadcast", zap.Int("active", len(active)))
		return nil
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		r.logger.Error("Could not encode snapshot", zap.Error(err))
		return nil
	}

	delivered := r.broadcaster.Broadcast(payload)

	for _, p := range r.publishers {
		if err := p.Publish(ctx, snapshot); err != nil {
			r.logger.Warn("Snapshot mirror failed", zap.String("publisher", fmt.Sprintf("%T", p)), zap.Error(err))
		}
	}

	r.logger.Info("Refresh cycle complete",
		zap.Bool("market_open", open),
		zap.Int("active", len(active)),
		zap.Int("requested", len(needed)),
		zap.Int("fetched", fetched),
		zap.Int("broadcast", len(snapshot)),
		zap.Int("subscribers", delivered),
		zap.Duration("duration", r.clock.Now().Sub(start)),
	)
	return snapshot
}

// NeedsFetch picks the symbols that must be fetched this cycle: all of them while the
// market is open, otherwise only those the cache has never seen.
func NeedsFetch(active []string, marketOpen bool, cache interface{ Has(string) bool }) []string {
	if marketOpen {
		out := make([]string, len(active))
		copy(out, active)
		return out
	}

	var out []string
	for _, sym := range active {
		if !cache.Has(sym) {
			out = append(out, sym)
		}
	}
	return out
}
