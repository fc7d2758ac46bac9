package provider

import (
	"context"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
)

// FinanceGoSource serves last prices through the piquette/finance-go quote endpoint.
type FinanceGoSource struct {
	get func(symbol string) (*finance.Quote, error)
}

var _ LastPriceSource = (*FinanceGoSource)(nil)

func NewFinanceGoSource() *FinanceGoSource {
	return &FinanceGoSource{get: quote.Get}
}

// LastPrice runs the library call on its own goroutine because it takes no context.
func (s *FinanceGoSource) LastPrice(ctx context.Context, symbol string) (float64, error) {
	type result struct {
		q   *finance.Quote
		err error
	}

	ch := make(chan result, 1)
	go func() {
		q, err := s.get(symbol)
		ch <- result{q: q, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r = <-ch:
	}

	if r.err != nil {
		return 0, r.err
	}
	if r.q == nil {
		return 0, ErrNoData
	}
	price, ok := UsablePrice(r.q.RegularMarketPrice)
	if !ok {
		return 0, ErrNoData
	}
	return price, nil
}
