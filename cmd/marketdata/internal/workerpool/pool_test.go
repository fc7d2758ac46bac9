package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/workerpool"
)

func TestPool_RunsAllTasks(t *testing.T) {
	p := workerpool.New(4, 8, zap.NewNop())
	defer p.Stop()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			count.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	if count.Load() != 100 {
		t.Errorf("Expected 100 tasks, got %d", count.Load())
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := workerpool.New(2, 0, zap.NewNop())
	defer p.Stop()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		p.Submit(context.Background(), func() {
			defer wg.Done()
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent tasks, saw %d", peak.Load())
	}
}

func TestPool_SurvivesPanic(t *testing.T) {
	p := workerpool.New(1, 1, zap.NewNop())
	defer p.Stop()

	p.Submit(context.Background(), func() { panic("boom") })

	done := make(chan struct{})
	p.Submit(context.Background(), func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker did not survive a panicking task")
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := workerpool.New(1, 1, zap.NewNop())
	p.Stop()
	p.Stop()

	if err := p.Submit(context.Background(), func() {}); !errors.Is(err, workerpool.ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	p := workerpool.New(1, 0, zap.NewNop())
	block := make(chan struct{})
	p.Submit(context.Background(), func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Submit(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	close(block)
	p.Stop()
}
