package fetcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/provider"
)

// Submitter runs a task on an execution context isolated from the caller.
type Submitter interface {
	Submit(ctx context.Context, task func()) error
}

// Fetcher looks up many symbols concurrently and keeps whatever prices it could get.
type Fetcher struct {
	source  provider.InfoSource
	pool    Submitter
	timeout time.Duration
	logger  *zap.Logger
}

func New(source provider.InfoSource, pool Submitter, timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		source:  source,
		pool:    pool,
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch returns a price for every symbol that resolved. A symbol that errors, times out,
// or has no usable price is left out; the result is never nil.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return out
	}

	start := time.Now()
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, sym := range symbols {
		wg.Add(1)
		symbol := sym
		err := f.pool.Submit(ctx, func() {
			defer wg.Done()
			price, ok := f.fetchOne(ctx, symbol)
			if !ok {
				return
			}
			mu.Lock()
			out[symbol] = price
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			f.logger.Warn("Could not schedule price lookup", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	f.logger.Info("Bulk fetch complete",
		zap.Int("requested", len(symbols)),
		zap.Int("fetched", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string) (price float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Price lookup panicked", zap.String("symbol", symbol), zap.Any("panic", r))
			price, ok = 0, false
		}
	}()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	info, err := f.source.Info(ctx, symbol)
	if err != nil {
		f.logger.Warn("Price lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return 0, false
	}

	price, ok = info.Price(provider.BulkPriceFields...)
	if !ok {
		f.logger.Warn("No usable price", zap.String("symbol", symbol))
	}
	return price, ok
}
