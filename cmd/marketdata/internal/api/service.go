package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/provider"
)

var ErrPriceNotFound = errors.New("price not found")

const defaultLookupTimeout = 10 * time.Second

// Service answers on-demand lookups straight from the upstream; it never reads the refresh cache.
// Concurrent lookups of the same symbol share one upstream call.
type Service struct {
	provider provider.Provider
	group    singleflight.Group
	timeout  time.Duration
	logger   *zap.Logger
}

type ServiceOption func(*Service)

// WithLookupTimeout bounds a shared upstream lookup. It applies no matter which caller started it.
func WithLookupTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(p provider.Provider, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{provider: p, timeout: defaultLookupTimeout, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// shared runs fn once per key for all concurrent callers. The lookup is detached from the
// caller that started it, so one caller going away cannot fail the others; each caller
// still stops waiting when its own ctx is done.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return fn(lookupCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Validate reports whether the upstream has info with a usable regular-market price for symbol.
// Upstream failures count as "not valid".
func (s *Service) Validate(ctx context.Context, symbol string) bool {
	v, err := s.shared(ctx, "validate:"+symbol, func(ctx context.Context) (interface{}, error) {
		info, err := s.provider.Info(ctx, symbol)
		if err != nil {
			if !errors.Is(err, provider.ErrNoData) {
				s.logger.Warn("Validate lookup failed", zap.String("symbol", symbol), zap.Error(err))
			}
			return false, nil
		}
		_, ok := info.Price("regularMarketPrice")
		return len(info) > 0 && ok, nil
	})
	if err != nil {
		return false
	}
	valid, _ := v.(bool)
	return valid
}

// Quote returns the fast last price, falling back to the info regular-market price.
// It fails with ErrPriceNotFound when neither is available, or with ctx's error when
// the caller stops waiting.
func (s *Service) Quote(ctx context.Context, symbol string) (float64, error) {
	v, err := s.shared(ctx, "quote:"+symbol, func(ctx context.Context) (interface{}, error) {
		price, err := s.provider.LastPrice(ctx, symbol)
		if err == nil {
			return price, nil
		}
		if !errors.Is(err, provider.ErrNoData) {
			s.logger.Debug("Fast price lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}

		info, err := s.provider.Info(ctx, symbol)
		if err != nil {
			if !errors.Is(err, provider.ErrNoData) {
				s.logger.Warn("Info lookup failed", zap.String("symbol", symbol), zap.Error(err))
			}
			return nil, fmt.Errorf("%w for symbol: %s", ErrPriceNotFound, symbol)
		}

		if price, ok := info.Price(provider.QuoteFallbackFields...); ok {
			return price, nil
		}
		return nil, fmt.Errorf("%w for symbol: %s", ErrPriceNotFound, symbol)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}
