package jobs

import (
	"context"
	"fmt"
	"log"
)

// DefaultReindexBatchSize bounds how many pending chunks one tick examines.
const DefaultReindexBatchSize = 100

// Reindexer retries vector index writes for chunks the index is missing.
type Reindexer interface {
	ReindexPending(ctx context.Context, limit int) (examined, indexed int, err error)
}

// ReindexWorker reconciles the vector index with the relational store by
// re-adding chunks whose index write failed. Chunks that keep failing stay
// pending and are simply picked up again on a later tick; the index add is an
// upsert, so repeats are harmless.
type ReindexWorker struct {
	service   Reindexer
	batchSize int
}

// NewReindexWorker creates a new ReindexWorker instance. A batchSize of 0 or
// less uses the default.
func NewReindexWorker(service Reindexer, batchSize int) *ReindexWorker {
	if batchSize <= 0 {
		batchSize = DefaultReindexBatchSize
	}
	return &ReindexWorker{
		service:   service,
		batchSize: batchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ReindexWorker) ProcessJobs(ctx context.Context) error {
	examined, indexed, err := w.service.ReindexPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to reindex pending chunks: %w", err)
	}
	if examined > 0 {
		log.Printf("Reindexed %d/%d pending chunks", indexed, examined)
	}
	return nil
}
