package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/provider"
	"github.com/shubham-shewale/market-data-relay/pkg/models"
)

// MockClient simulates a connected websocket subscriber
type MockClient struct {
	IDVal    string
	RawBytes []string
	Closed   bool
	// Fail makes every send fail, as a silently disconnected peer would.
	Fail bool
	Mu   sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendBytes(b []byte) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Fail {
		return errors.New("broken pipe")
	}
	m.RawBytes = append(m.RawBytes, string(b))
	return nil
}

func (m *MockClient) Received() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.RawBytes))
	copy(out, m.RawBytes)
	return out
}

func (m *MockClient) IsClosed() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Closed
}

// MockProvider simulates the upstream market-data source
type MockProvider struct {
	Infos      map[string]provider.Info
	LastPrices map[string]float64
	InfoErr    map[string]error
	Panic      map[string]bool
	Delay      time.Duration

	Mu        sync.Mutex
	InfoCalls map[string]int
	LastCalls map[string]int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Infos:      make(map[string]provider.Info),
		LastPrices: make(map[string]float64),
		InfoErr:    make(map[string]error),
		Panic:      make(map[string]bool),
		InfoCalls:  make(map[string]int),
		LastCalls:  make(map[string]int),
	}
}

func (m *MockProvider) Info(ctx context.Context, symbol string) (provider.Info, error) {
	m.Mu.Lock()
	m.InfoCalls[symbol]++
	info, ok := m.Infos[symbol]
	err := m.InfoErr[symbol]
	panics := m.Panic[symbol]
	delay := m.Delay
	m.Mu.Unlock()

	if panics {
		panic("upstream client exploded for " + symbol)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, provider.ErrNoData
	}
	return info, nil
}

func (m *MockProvider) LastPrice(ctx context.Context, symbol string) (float64, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.LastCalls[symbol]++
	p, ok := m.LastPrices[symbol]
	if !ok {
		return 0, provider.ErrNoData
	}
	return p, nil
}

func (m *MockProvider) InfoCallCount(symbol string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.InfoCalls[symbol]
}

// MockSymbolSource returns a fixed active set, or Err
type MockSymbolSource struct {
	Symbols []string
	Err     error
	Mu      sync.Mutex
	Calls   int
}

func (m *MockSymbolSource) ActiveSymbols(ctx context.Context) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]string, len(m.Symbols))
	copy(out, m.Symbols)
	return out, nil
}

func (m *MockSymbolSource) CallCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Calls
}

type MockOracle struct{ Open bool }

func (m MockOracle) IsOpen(time.Time) bool { return m.Open }

// MockFetcher records every requested batch and answers from Prices
type MockFetcher struct {
	Prices   map[string]float64
	Mu       sync.Mutex
	Requests [][]string
}

func (m *MockFetcher) Fetch(ctx context.Context, symbols []string) map[string]float64 {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Requests = append(m.Requests, append([]string(nil), symbols...))
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := m.Prices[s]; ok {
			out[s] = p
		}
	}
	return out
}

// MockBroadcaster records payloads instead of sending them
type MockBroadcaster struct {
	Mu       sync.Mutex
	Payloads [][]byte
}

func (m *MockBroadcaster) Broadcast(payload []byte) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Payloads = append(m.Payloads, payload)
	return 1
}

func (m *MockBroadcaster) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Payloads)
}

type MockPublisher struct {
	Err       error
	Mu        sync.Mutex
	Snapshots []models.PriceSnapshot
}

func (m *MockPublisher) Publish(ctx context.Context, snapshot models.PriceSnapshot) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Snapshots = append(m.Snapshots, snapshot)
	return m.Err
}

// MockClock fires After immediately and advances CurrentTime by the requested duration
type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
	Sleeps      []time.Duration
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) After(d time.Duration) <-chan time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Sleeps = append(m.Sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- m.CurrentTime
	return ch
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Sleeps = append(m.Sleeps, d)
}
