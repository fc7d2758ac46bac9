// Package provider talks to the upstream market-data source.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"math"
)

// ErrNoData is returned when the upstream has nothing usable for a symbol.
var ErrNoData = errors.New("no data for symbol")

// Candidate info fields, in priority order.
var (
	BulkPriceFields     = []string{"currentPrice", "regularMarketPrice", "previousClose"}
	QuoteFallbackFields = []string{"regularMarketPrice"}
)

// Info is the descriptive record the upstream keeps for a symbol, flattened to field -> value.
type Info map[string]any

// Price returns the first usable price among fields, short-circuiting in order.
func (i Info) Price(fields ...string) (float64, bool) {
	for _, f := range fields {
		if p, ok := UsablePrice(i[f]); ok {
			return p, true
		}
	}
	return 0, false
}

// UsablePrice converts v to a positive, finite price.
func UsablePrice(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

type InfoSource interface {
	Info(ctx context.Context, symbol string) (Info, error)
}

// LastPriceSource answers the quick last-traded price. It returns ErrNoData when there is none.
type LastPriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

type Provider interface {
	InfoSource
	LastPriceSource
}

// Composite pairs an info source with a separate last-price source.
type Composite struct {
	InfoSource
	LastPriceSource
}

var _ Provider = Composite{}
