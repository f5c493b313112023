// Package vectorindex is the searchable side of the dual-store layout. The
// relational chunk row remains authoritative; the index holds a projection
// keyed by chunk id and can always be rebuilt from the chunk table.
package vectorindex

import (
	"context"

	"github.com/agentkb/agentkb/internal/domain"
)

// Entry is one indexed chunk projection. Content and metadata are carried for
// search-time display only and are never read back as authoritative.
type Entry struct {
	ChunkID     string
	KnowledgeID string
	AgentID     string
	Content     string
	Metadata    map[string]any
	Embedding   []float32
}

// Match is one search hit. Score is a similarity in (0, 1], higher is closer.
type Match struct {
	ChunkID string
	AgentID string
	Score   float64
}

// Index abstracts the vector store. Implementations must treat Add as an
// upsert so reconciliation retries stay idempotent, and Delete of a missing
// entry as a no-op.
type Index interface {
	Add(ctx context.Context, e Entry) error
	Delete(ctx context.Context, chunkID string) error
	DeleteByKnowledge(ctx context.Context, knowledgeID string) error
	// Search returns the topK nearest entries to the query embedding. The
	// query length selects the dimension partition; entries of the other
	// dimension are never candidates.
	Search(ctx context.Context, embedding []float32, topK int) ([]Match, error)
}

func validateDimension(embedding []float32) error {
	if !domain.SupportedDimension(len(embedding)) {
		return domain.ErrUnsupportedDimension
	}
	return nil
}
