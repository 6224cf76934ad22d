package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reelworks/vod-pipeline/internal/metrics"
	"github.com/reelworks/vod-pipeline/internal/queue"
)

// Worker loop constants
const (
	RetryBackoffPeriod = 5 * time.Second
)

// Jobs is the queue surface the worker needs.
type Jobs interface {
	Receive(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
}

// Worker consumes transcode jobs from the queue and drives the processor.
type Worker struct {
	jobs          Jobs
	processor     *Processor
	maxConcurrent int
	log           *slog.Logger
}

// WorkerConfig holds worker dependencies.
type WorkerConfig struct {
	Jobs          Jobs
	Processor     *Processor
	MaxConcurrent int
	Logger        *slog.Logger
}

// NewWorker creates a Worker.
func NewWorker(cfg *WorkerConfig) *Worker {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Worker{
		jobs:          cfg.Jobs,
		processor:     cfg.Processor,
		maxConcurrent: maxConcurrent,
		log:           cfg.Logger,
	}
}

// Run starts the worker and blocks until the context is cancelled.
// In-flight jobs run to completion before Run returns.
func (w *Worker) Run(ctx context.Context) {
	w.log.InfoContext(ctx, "Starting queue polling", "maxConcurrent", w.maxConcurrent)

	sem := make(chan struct{}, w.maxConcurrent)
	var wg sync.WaitGroup

messageLoop:
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "Waiting for in-progress jobs to complete...")
			wg.Wait()
			w.log.InfoContext(ctx, "All jobs completed, shutting down")
			return
		default:
		}

		messages, err := w.jobs.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue // Shutting down
			}
			w.log.ErrorContext(ctx, "Failed to receive messages", "error", err)
			time.Sleep(RetryBackoffPeriod)
			continue
		}

		for _, msg := range messages {
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func(msg queue.Message) {
					defer wg.Done()
					defer func() { <-sem }()

					metrics.ActiveJobs.Inc()
					defer metrics.ActiveJobs.Dec()

					if err := w.processor.Process(ctx, &msg.Job); err != nil {
						// No ack: the queue redelivers after the
						// visibility timeout.
						w.log.ErrorContext(ctx, "Failed to process job",
							"error", err,
							"sessionId", msg.Job.SessionID,
							"messageId", msg.MessageID,
						)
						metrics.RecordFailure()
						return
					}

					if ackErr := w.jobs.Ack(ctx, msg); ackErr != nil {
						w.log.ErrorContext(ctx, "Failed to ack message",
							"error", ackErr,
							"sessionId", msg.Job.SessionID,
						)
					}
					metrics.RecordSuccess()
				}(msg)
			case <-ctx.Done():
				w.log.InfoContext(ctx, "Context cancelled, stopping message processing")
				break messageLoop
			}
		}
	}

	wg.Wait()
}
