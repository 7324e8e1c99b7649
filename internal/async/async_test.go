package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateBoundsConcurrency(t *testing.T) {
	g := NewGate(3, nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), "test", func(ctx context.Context) error {
				time.Sleep(20 * time.Millisecond)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if g.Peak() > 3 {
		t.Fatalf("peak concurrency %d exceeds gate size", g.Peak())
	}
	if g.InFlight() != 0 {
		t.Fatalf("in-flight should be zero after completion, got %d", g.InFlight())
	}
}

func TestGateQueuedCallerTimesOut(t *testing.T) {
	g := NewGate(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), "holder", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	called := false
	err := g.Do(ctx, "waiter", func(ctx context.Context) error {
		called = true
		return nil
	})
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if called {
		t.Fatal("fn must not run when the slot was never acquired")
	}
}

func TestRunReturnsValue(t *testing.T) {
	g := NewGate(0, nil)
	if g.Size() != DefaultGateSize {
		t.Fatalf("default size: got %d", g.Size())
	}
	v, err := Run(context.Background(), g, "value", func(ctx context.Context) (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}
	v, err = Run(context.Background(), nil, "nil gate", func(ctx context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("nil gate: got %d, %v", v, err)
	}
}

func TestWorkerQueueProcessesAllJobs(t *testing.T) {
	var count atomic.Int64
	proc := ProcessorFunc(func(ctx context.Context, job Job) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context should carry a deadline")
		}
		count.Add(1)
		if job.ScanID == "bad" {
			return errors.New("boom")
		}
		return nil
	})
	q := NewWorkerQueue(proc, nil, WithWorkers(3), WithQueueSize(2), WithProcessTimeout(time.Second))
	for _, id := range []string{"a", "b", "bad", "c", "d"} {
		if err := q.Enqueue(context.Background(), Job{ScanID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	if count.Load() != 5 {
		t.Fatalf("expected 5 jobs processed, got %d", count.Load())
	}
	ok, failed := q.Stats()
	if ok != 4 || failed != 1 {
		t.Fatalf("stats: processed=%d failed=%d", ok, failed)
	}
	if err := q.Enqueue(context.Background(), Job{ScanID: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	q.Shutdown(ctx)
}

func TestWorkerQueueBackpressureHonorsContext(t *testing.T) {
	block := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, job Job) error {
		<-block
		return nil
	})
	q := NewWorkerQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	// one job held by the worker, one in the buffer
	_ = q.Enqueue(context.Background(), Job{ScanID: "1"})
	_ = q.Enqueue(context.Background(), Job{ScanID: "2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{ScanID: "overflow"})
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected backpressure to end with deadline, got %v", err)
	}
	close(block)
	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	q.Shutdown(sctx)
}
