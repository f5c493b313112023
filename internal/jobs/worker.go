// Package jobs runs background processors on a polling loop.
package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor is a unit of background work driven by the Worker.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed interval until stopped.
// Processor errors are logged and the loop keeps running.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a worker that ticks every pollInterval.
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop. It blocks until the context is cancelled
// or Stop is called, so callers usually run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("jobs: worker started (poll interval %v)", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("jobs: worker stopped, context cancelled")
			return
		case <-w.stopChan:
			log.Println("jobs: worker stopped")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("jobs: processing failed: %v", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the current tick to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
