package domain

import "time"

// Supported embedding dimensions. The relational schema carries one nullable
// vector column per dimension; exactly one is populated for an indexed chunk.
const (
	Dimension768  = 768
	Dimension1536 = 1536
)

// SupportedDimension reports whether d maps to an embedding column.
func SupportedDimension(d int) bool {
	return d == Dimension768 || d == Dimension1536
}

// IndexStatus tracks a chunk's position in the dual-store lifecycle.
type IndexStatus string

const (
	// IndexStatusIndexed means the chunk is present in both the relational
	// store and the vector index (terminal success).
	IndexStatusIndexed IndexStatus = "indexed"
	// IndexStatusPending means the relational write succeeded but the vector
	// index write did not; the chunk is listable but not searchable until a
	// reconciliation pass re-attempts indexing.
	IndexStatusPending IndexStatus = "pending"
	// IndexStatusSkipped means the chunk was persisted without an embedding
	// because the provider returned an unrecognized dimension. It is never
	// auto-indexed.
	IndexStatusSkipped IndexStatus = "skipped"
)

// Chunk is one bounded text segment of a knowledge source. The agent id is
// denormalized from the parent knowledge source and must always match it.
//
// The relational record is the source of truth for content, order and
// metadata; the vector index only holds a searchable projection.
type Chunk struct {
	ID          string
	KnowledgeID string
	AgentID     string
	ChunkOrder  int
	Content     string
	Metadata    map[string]any

	// Exactly one of these is set for an embedded chunk; both are nil for a
	// degraded save with an unrecognized dimension.
	Embedding768  []float32
	Embedding1536 []float32

	IndexStatus IndexStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedding returns whichever embedding column is populated, with its
// dimension, or (nil, 0) if the chunk carries no embedding.
func (c *Chunk) Embedding() ([]float32, int) {
	if len(c.Embedding768) > 0 {
		return c.Embedding768, Dimension768
	}
	if len(c.Embedding1536) > 0 {
		return c.Embedding1536, Dimension1536
	}
	return nil, 0
}

// SetEmbedding routes vec to the dimension-appropriate column and clears the
// other. An unsupported dimension clears both and reports false.
func (c *Chunk) SetEmbedding(vec []float32) bool {
	switch len(vec) {
	case Dimension768:
		c.Embedding768 = vec
		c.Embedding1536 = nil
		return true
	case Dimension1536:
		c.Embedding1536 = vec
		c.Embedding768 = nil
		return true
	default:
		c.Embedding768 = nil
		c.Embedding1536 = nil
		return false
	}
}
