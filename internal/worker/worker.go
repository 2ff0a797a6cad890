// Package worker polls the Redis queue and hands jobs to the pipeline.
// Each job occupies one goroutine for its whole life; the pool size
// caps how many jobs render at once. An in-flight transcode is never
// killed — cancellation means no further jobs are picked up.
package worker

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobarin/montage/internal/pipeline"
	"github.com/bobarin/montage/internal/queue"
)

const dequeueTimeout = 5 * time.Second

type Worker struct {
	queue *queue.Queue
	pipe  *pipeline.Pipeline
}

func New(q *queue.Queue, pipe *pipeline.Pipeline) *Worker {
	return &Worker{
		queue: q,
		pipe:  pipe,
	}
}

// Start runs the polling pool until the context is cancelled. Each pool
// slot loops dequeue → run; jobs already running finish before Start
// returns.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("[Worker] Started with concurrency: %d", concurrency)

	g := new(errgroup.Group)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.poll(ctx)
			return nil
		})
	}
	g.Wait()

	log.Println("[Worker] Shut down")
}

func (w *Worker) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, dequeueTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] Error dequeuing: %v", err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("[Worker] Processing job %s (%d lines, %s, provider %s)",
				job.ID, job.LineCount, job.Orientation, job.Provider)

			if err := w.pipe.Run(ctx, *job); err != nil {
				log.Printf("[Worker] Job %s failed: %v", job.ID, err)
			} else {
				log.Printf("[Worker] Job %s completed successfully", job.ID)
			}
		}
	}
}
