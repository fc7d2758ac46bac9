package models

// StockUpdate represents a single price record for a stock symbol
type StockUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	SeqID     int64   `json:"seq_id"`    // monotonic counter per symbol
}

// PriceSnapshot maps symbol to its latest known price. It is the payload pushed to subscribers.
type PriceSnapshot map[string]float64

// Symbols returns the snapshot keys in no particular order.
func (s PriceSnapshot) Symbols() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	return out
}
