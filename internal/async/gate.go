package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultGateSize bounds concurrent calls to rate-limited downstream services.
const DefaultGateSize = 3

// Gate is a process-wide bounded-concurrency gate for external calls. Callers
// beyond the limit queue until a slot frees up or their context ends.
type Gate struct {
	sem      *semaphore.Weighted
	size     int64
	inFlight atomic.Int64
	peak     atomic.Int64
	logger   *slog.Logger
}

func NewGate(size int, logger *slog.Logger) *Gate {
	if size <= 0 {
		size = DefaultGateSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{sem: semaphore.NewWeighted(int64(size)), size: int64(size), logger: logger}
}

// Do runs fn once a slot is available.
func (g *Gate) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, g, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run is Do for calls that return a value.
func Run[T any](ctx context.Context, g *Gate, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if g == nil {
		return fn(ctx)
	}
	waitStart := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		g.logger.Warn("gate.acquire.timeout", "call", name, "waited_ms", time.Since(waitStart).Milliseconds())
		return zero, fmt.Errorf("gate %s: %w", name, err)
	}
	defer g.sem.Release(1)

	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if waited := time.Since(waitStart); waited > 50*time.Millisecond {
		g.logger.Debug("gate.acquire.queued", "call", name, "waited_ms", waited.Milliseconds())
	}
	return fn(ctx)
}

// Size is the number of concurrent slots.
func (g *Gate) Size() int { return int(g.size) }

// InFlight is the number of calls currently holding a slot.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Peak is the highest concurrency observed.
func (g *Gate) Peak() int { return int(g.peak.Load()) }
