package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned when enqueueing after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one label scan submitted for background processing.
type Job struct {
	ScanID      string
	User        string
	Path        string // label image or .txt file with extracted text
	Servings    float64
	SubmittedAt time.Time
	TraceID     string
}

// Processor handles a single job.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
