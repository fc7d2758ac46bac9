package tests

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/api"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/fetcher"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/hub"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/pricecache"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/provider"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/refresher"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/repository"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/testutils"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/workerpool"
)

type relay struct {
	server   *httptest.Server
	hub      *hub.Hub
	upstream *testutils.MockProvider
	symbols  *testutils.MockSymbolSource
	loop     *refresher.Refresher
	mr       *miniredis.Miniredis
}

func startRelay(t *testing.T, open bool) *relay {
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := repository.NewRedisStore(rdb, time.Hour, logger)
	t.Cleanup(func() { store.Close() })

	pool := workerpool.New(4, 8, logger)
	t.Cleanup(pool.Stop)

	upstream := testutils.NewMockProvider()
	symbols := &testutils.MockSymbolSource{}
	wsHub := hub.NewHub(logger)

	loop := refresher.New(
		symbols,
		testutils.MockOracle{Open: open},
		fetcher.New(upstream, pool, time.Second, logger),
		pricecache.New(),
		wsHub,
		15*time.Second,
		logger,
		refresher.WithClock(&testutils.MockClock{CurrentTime: time.Unix(0, 0)}),
		refresher.WithPublishers(store),
	)

	handler := api.NewHandler(api.NewService(upstream, logger), wsHub, logger)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)

	return &relay{server: server, hub: wsHub, upstream: upstream, symbols: symbols, loop: loop, mr: mr}
}

func (r *relay) connect(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws/market-data/prices"
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	waitFor(t, func() bool { return r.hub.Len() > 0 })
	return wsConn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) map[string]float64 {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive broadcast: %v", err)
	}
	var snapshot map[string]float64
	if err := json.Unmarshal(msg, &snapshot); err != nil {
		t.Fatalf("Broadcast is not a flat JSON object: %s", msg)
	}
	return snapshot
}

func TestEndToEnd_CycleReachesSubscribers(t *testing.T) {
	r := startRelay(t, true)
	r.symbols.Symbols = []string{"AAPL", "MSFT"}
	r.upstream.Infos["AAPL"] = provider.Info{"currentPrice": 150.25, "regularMarketPrice": 150.0}
	r.upstream.Infos["MSFT"] = provider.Info{"previousClose": 300.0}

	first := r.connect(t)
	defer first.Close()
	second := r.connect(t)
	defer second.Close()
	waitFor(t, func() bool { return r.hub.Len() == 2 })

	r.loop.RunCycle(context.Background())

	want := map[string]float64{"AAPL": 150.25, "MSFT": 300.0}
	for _, conn := range []*websocket.Conn{first, second} {
		got := readSnapshot(t, conn)
		if len(got) != len(want) || got["AAPL"] != want["AAPL"] || got["MSFT"] != want["MSFT"] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}

	if !r.mr.Exists("stock:AAPL") || !r.mr.Exists(repository.SnapshotKey) {
		t.Error("Snapshot was not mirrored to redis")
	}
}

func TestEndToEnd_ClosedMarketServesCache(t *testing.T) {
	r := startRelay(t, false)
	r.symbols.Symbols = []string{"AAPL"}
	r.upstream.Infos["AAPL"] = provider.Info{"currentPrice": 150.0}

	conn := r.connect(t)
	defer conn.Close()

	r.loop.RunCycle(context.Background())
	if got := readSnapshot(t, conn); got["AAPL"] != 150.0 {
		t.Fatalf("Expected first fetch to fill cache, got %v", got)
	}

	r.upstream.Mu.Lock()
	r.upstream.Infos["AAPL"] = provider.Info{"currentPrice": 999.0}
	r.upstream.Mu.Unlock()

	r.loop.RunCycle(context.Background())
	if got := readSnapshot(t, conn); got["AAPL"] != 150.0 {
		t.Errorf("Closed market should replay cached price, got %v", got)
	}
	if n := r.upstream.InfoCallCount("AAPL"); n != 1 {
		t.Errorf("Expected a single upstream call, got %d", n)
	}
}

func TestEndToEnd_DisconnectUnregisters(t *testing.T) {
	r := startRelay(t, true)

	conn := r.connect(t)
	conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, func() bool { return r.hub.Len() == 0 })
}

func TestEndToEnd_ClientMessagesIgnored(t *testing.T) {
	r := startRelay(t, true)
	r.symbols.Symbols = []string{"AAPL"}
	r.upstream.Infos["AAPL"] = provider.Info{"regularMarketPrice": 10.0}

	conn := r.connect(t)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r.loop.RunCycle(context.Background())
	if got := readSnapshot(t, conn); got["AAPL"] != 10.0 {
		t.Errorf("Expected broadcast only, got %v", got)
	}
}

func TestEndToEnd_NoSymbolsNoBroadcast(t *testing.T) {
	r := startRelay(t, true)

	conn := r.connect(t)
	defer conn.Close()

	r.loop.RunCycle(context.Background())

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, msg, err := conn.ReadMessage(); err == nil {
		t.Errorf("Expected no frame for empty active set, got %s", msg)
	}
}
