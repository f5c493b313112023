package service

import (
	"context"
	"log"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/pagination"
	"github.com/agentkb/agentkb/internal/provider"
	"github.com/agentkb/agentkb/internal/telemetry"
	"github.com/agentkb/agentkb/internal/vectorindex"
)

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Chunk) error
	GetByID(ctx context.Context, id string) (*domain.Chunk, error)
	GetForAgent(ctx context.Context, id, agentID string) (*domain.Chunk, error)
	Update(ctx context.Context, c *domain.Chunk) error
	Delete(ctx context.Context, id string) error
	DeleteByKnowledge(ctx context.Context, knowledgeID string) error
	ListByKnowledge(ctx context.Context, knowledgeID string) ([]*domain.Chunk, error)
	ListByKnowledgePage(ctx context.Context, knowledgeID string, afterOrder, limit int) ([]*domain.Chunk, error)
	ListByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error)
	MaxChunkOrder(ctx context.Context, knowledgeID string) (int, error)
	ListPendingIndex(ctx context.Context, limit int) ([]*domain.Chunk, error)
	UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus) error
	AcquireOrderLock(ctx context.Context, knowledgeID string) error
}

// EmbeddingClientSource resolves the embedding client for an agent.
type EmbeddingClientSource interface {
	EmbeddingClient(ctx context.Context, agentID string) (provider.EmbeddingClient, error)
}

// ChunkService coordinates the chunk lifecycle across the relational store
// and the vector index. The relational write is authoritative; the index
// write is best-effort, with index_status recording chunks the index is
// missing so reconciliation can retry them.
type ChunkService struct {
	knowledgeRepo KnowledgeRepositoryInterface
	chunkRepo     ChunkRepositoryInterface
	index         vectorindex.Index
	embedders     EmbeddingClientSource
	tx            TxRunner
	uuidGen       UUIDGenerator
}

// NewChunkService creates a new ChunkService instance
func NewChunkService(
	knowledgeRepo KnowledgeRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	index vectorindex.Index,
	embedders EmbeddingClientSource,
	tx TxRunner,
) *ChunkService {
	return &ChunkService{
		knowledgeRepo: knowledgeRepo,
		chunkRepo:     chunkRepo,
		index:         index,
		embedders:     embedders,
		tx:            tx,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

// AddChunkInput represents the input for adding a single chunk
type AddChunkInput struct {
	AgentID     string
	KnowledgeID string
	Content     string
	Metadata    map[string]any
	// Order of 0 means allocate the next order within the knowledge source.
	Order int
}

// UpdateChunkInput represents the input for rewriting a chunk's content
type UpdateChunkInput struct {
	AgentID     string
	KnowledgeID string
	ChunkID     string
	Content     string
	Metadata    map[string]any
}

// SearchInput represents a similarity search request scoped to one knowledge source
type SearchInput struct {
	AgentID     string
	KnowledgeID string
	Query       string
	TopK        int
}

// SearchMatch pairs a chunk with its similarity score.
type SearchMatch struct {
	Chunk *domain.Chunk
	Score float64
}

// NextChunkOrder returns the next usable chunk order for a knowledge source,
// after verifying the source belongs to the agent. The value is advisory
// outside a transaction; AddChunk re-derives it under the per-source lock.
func (s *ChunkService) NextChunkOrder(ctx context.Context, agentID, knowledgeID string) (int, error) {
	if _, err := s.knowledgeRepo.GetForAgent(ctx, knowledgeID, agentID); err != nil {
		return 0, err
	}
	max, err := s.chunkRepo.MaxChunkOrder(ctx, knowledgeID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// AddChunk embeds content and writes it to both stores: ownership check,
// embedding, relational insert under the per-source order lock, then a
// best-effort vector index add. An embedding of unrecognized dimension is a
// degraded save: the chunk is persisted without an embedding and never
// becomes searchable.
func (s *ChunkService) AddChunk(ctx context.Context, input AddChunkInput) (*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.AddChunk", telemetry.SpanAttributes{
		AgentID:     input.AgentID,
		KnowledgeID: input.KnowledgeID,
		Operation:   "add_chunk",
	})
	defer span.End()

	if input.Content == "" {
		return nil, domain.ErrEmptyContent
	}
	if _, err := s.knowledgeRepo.GetForAgent(ctx, input.KnowledgeID, input.AgentID); err != nil {
		return nil, err
	}

	embedder, err := s.embedders.EmbeddingClient(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}
	vector, err := embedder.Embed(ctx, input.Content)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	now := time.Now().UTC()
	chunk := &domain.Chunk{
		ID:          s.uuidGen.NewString(),
		KnowledgeID: input.KnowledgeID,
		AgentID:     input.AgentID,
		Content:     input.Content,
		Metadata:    input.Metadata,
		IndexStatus: domain.IndexStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !chunk.SetEmbedding(vector) {
		log.Printf("chunk service: unrecognized embedding dimension %d for agent %s, saving chunk without embedding", len(vector), input.AgentID)
		chunk.IndexStatus = domain.IndexStatusSkipped
	}

	// The order computation and insert form a critical section per knowledge
	// source; the advisory lock serializes concurrent imports and the unique
	// constraint on (knowledge_id, chunk_order) backstops it.
	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		chunks := repos.Chunks()
		if err := chunks.AcquireOrderLock(ctx, input.KnowledgeID); err != nil {
			return err
		}
		chunk.ChunkOrder = input.Order
		if chunk.ChunkOrder <= 0 {
			max, err := chunks.MaxChunkOrder(ctx, input.KnowledgeID)
			if err != nil {
				return err
			}
			chunk.ChunkOrder = max + 1
		}
		return chunks.Create(ctx, chunk)
	})
	if err != nil {
		return nil, err
	}

	s.tryIndex(ctx, chunk)
	return chunk, nil
}

// UpdateChunk rewrites a chunk's content and metadata, re-embeds, saves the
// authoritative record, then refreshes the index with a delete-then-add. An
// index failure after the relational update leaves the chunk unsearchable
// until reconciliation; the operation still reports success.
func (s *ChunkService) UpdateChunk(ctx context.Context, input UpdateChunkInput) (*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.UpdateChunk", telemetry.SpanAttributes{
		AgentID:     input.AgentID,
		KnowledgeID: input.KnowledgeID,
		ChunkID:     input.ChunkID,
		Operation:   "update_chunk",
	})
	defer span.End()

	if input.Content == "" {
		return nil, domain.ErrEmptyContent
	}

	chunk, err := s.getOwnedChunk(ctx, input.AgentID, input.KnowledgeID, input.ChunkID)
	if err != nil {
		return nil, err
	}

	embedder, err := s.embedders.EmbeddingClient(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}
	vector, err := embedder.Embed(ctx, input.Content)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	chunk.Content = input.Content
	if input.Metadata != nil {
		chunk.Metadata = input.Metadata
	}
	chunk.IndexStatus = domain.IndexStatusPending
	if !chunk.SetEmbedding(vector) {
		log.Printf("chunk service: unrecognized embedding dimension %d for agent %s, clearing embedding on chunk %s", len(vector), input.AgentID, chunk.ID)
		chunk.IndexStatus = domain.IndexStatusSkipped
	}

	if err := s.chunkRepo.Update(ctx, chunk); err != nil {
		return nil, err
	}

	// Delete-then-add: the index has no in-place update. A stale entry left
	// by a failed delete is harmless because Add upserts by chunk id.
	if err := s.index.Delete(ctx, chunk.ID); err != nil {
		log.Printf("chunk service: index delete failed for chunk %s: %v", chunk.ID, err)
	}
	s.tryIndex(ctx, chunk)

	return chunk, nil
}

// GetChunk fetches one chunk under ownership checks.
func (s *ChunkService) GetChunk(ctx context.Context, agentID, knowledgeID, chunkID string) (*domain.Chunk, error) {
	return s.getOwnedChunk(ctx, agentID, knowledgeID, chunkID)
}

// ListChunks returns all chunks of a knowledge source in ascending order.
// The ordering is load-bearing for consumers reconstructing document
// structure.
func (s *ChunkService) ListChunks(ctx context.Context, agentID, knowledgeID string) ([]*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.ListChunks", telemetry.SpanAttributes{
		AgentID:     agentID,
		KnowledgeID: knowledgeID,
		Operation:   "list_chunks",
	})
	defer span.End()

	if _, err := s.knowledgeRepo.GetForAgent(ctx, knowledgeID, agentID); err != nil {
		return nil, err
	}
	return s.chunkRepo.ListByKnowledge(ctx, knowledgeID)
}

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// ListChunksPage returns one page of chunks in ascending order. The cursor is
// opaque; an empty cursor starts from the beginning.
func (s *ChunkService) ListChunksPage(ctx context.Context, agentID, knowledgeID, cursor string, limit int) (*pagination.PageResult[*domain.Chunk], error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}
	afterOrder := 0
	if decoded != nil {
		afterOrder = decoded.LastOrder
	}

	if _, err := s.knowledgeRepo.GetForAgent(ctx, knowledgeID, agentID); err != nil {
		return nil, err
	}

	chunks, err := s.chunkRepo.ListByKnowledgePage(ctx, knowledgeID, afterOrder, limit)
	if err != nil {
		return nil, err
	}

	next := pagination.CreateNextCursor(chunks, limit,
		func(c *domain.Chunk) string { return c.ID },
		func(c *domain.Chunk) int { return c.ChunkOrder },
	)
	return &pagination.PageResult[*domain.Chunk]{
		Items:   chunks,
		Cursor:  next,
		HasMore: next != "",
	}, nil
}

// DeleteChunk removes a chunk from the relational store, then best-effort
// from the index. A stale index entry is discarded by the search cross-check.
func (s *ChunkService) DeleteChunk(ctx context.Context, agentID, knowledgeID, chunkID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.DeleteChunk", telemetry.SpanAttributes{
		AgentID:     agentID,
		KnowledgeID: knowledgeID,
		ChunkID:     chunkID,
		Operation:   "delete_chunk",
	})
	defer span.End()

	chunk, err := s.getOwnedChunk(ctx, agentID, knowledgeID, chunkID)
	if err != nil {
		return err
	}

	if err := s.chunkRepo.Delete(ctx, chunk.ID); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, chunk.ID); err != nil {
		log.Printf("chunk service: index delete failed for chunk %s: %v", chunk.ID, err)
		telemetry.CaptureError(ctx, err)
	}
	return nil
}

// SearchSimilar embeds the query and returns the nearest chunks within one
// knowledge source. Index hits are cross-checked against the relational
// record; hits from other scopes or stale entries are silently dropped, so
// fewer than topK results may be returned.
func (s *ChunkService) SearchSimilar(ctx context.Context, input SearchInput) ([]SearchMatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.SearchSimilar", telemetry.SpanAttributes{
		AgentID:     input.AgentID,
		KnowledgeID: input.KnowledgeID,
		Operation:   "search",
	})
	defer span.End()

	if input.Query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if input.TopK <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	if _, err := s.knowledgeRepo.GetForAgent(ctx, input.KnowledgeID, input.AgentID); err != nil {
		return nil, err
	}

	embedder, err := s.embedders.EmbeddingClient(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}
	queryVector, err := embedder.Embed(ctx, input.Query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	hits, err := s.index.Search(ctx, queryVector, input.TopK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []SearchMatch{}, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ChunkID)
	}
	chunks, err := s.chunkRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	matches := make([]SearchMatch, 0, len(hits))
	for _, h := range hits {
		chunk, ok := byID[h.ChunkID]
		if !ok {
			// Stale index entry referencing a deleted chunk.
			continue
		}
		if chunk.KnowledgeID != input.KnowledgeID || chunk.AgentID != input.AgentID {
			continue
		}
		matches = append(matches, SearchMatch{Chunk: chunk, Score: h.Score})
	}
	return matches, nil
}

// ReindexPending re-adds chunks whose index write failed. Returns how many
// chunks were examined and how many made it into the index.
func (s *ChunkService) ReindexPending(ctx context.Context, limit int) (examined, indexed int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.ReindexPending", telemetry.SpanAttributes{
		Operation: "reindex",
	})
	defer span.End()

	chunks, err := s.chunkRepo.ListPendingIndex(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, chunk := range chunks {
		examined++
		embedding, _ := chunk.Embedding()
		if len(embedding) == 0 {
			// Pending without an embedding should not happen; park it as
			// skipped so the worker stops retrying it.
			log.Printf("chunk service: pending chunk %s has no embedding, marking skipped", chunk.ID)
			if err := s.chunkRepo.UpdateIndexStatus(ctx, chunk.ID, domain.IndexStatusSkipped); err != nil {
				return examined, indexed, err
			}
			continue
		}
		if err := s.index.Add(ctx, indexEntry(chunk, embedding)); err != nil {
			log.Printf("chunk service: reindex failed for chunk %s: %v", chunk.ID, err)
			continue
		}
		if err := s.chunkRepo.UpdateIndexStatus(ctx, chunk.ID, domain.IndexStatusIndexed); err != nil {
			return examined, indexed, err
		}
		indexed++
	}
	return examined, indexed, nil
}

// tryIndex attempts the best-effort index add for a freshly written chunk and
// records the outcome in index_status. Failures are logged, never returned:
// relational durability is never sacrificed for index availability.
func (s *ChunkService) tryIndex(ctx context.Context, chunk *domain.Chunk) {
	if chunk.IndexStatus == domain.IndexStatusSkipped {
		return
	}
	embedding, _ := chunk.Embedding()

	if err := s.index.Add(ctx, indexEntry(chunk, embedding)); err != nil {
		log.Printf("chunk service: index add failed for chunk %s, leaving pending: %v", chunk.ID, err)
		telemetry.CaptureError(ctx, err)
		return
	}
	if err := s.chunkRepo.UpdateIndexStatus(ctx, chunk.ID, domain.IndexStatusIndexed); err != nil {
		log.Printf("chunk service: failed to record indexed status for chunk %s: %v", chunk.ID, err)
		return
	}
	chunk.IndexStatus = domain.IndexStatusIndexed
}

func (s *ChunkService) getOwnedChunk(ctx context.Context, agentID, knowledgeID, chunkID string) (*domain.Chunk, error) {
	if _, err := s.knowledgeRepo.GetForAgent(ctx, knowledgeID, agentID); err != nil {
		return nil, err
	}
	chunk, err := s.chunkRepo.GetForAgent(ctx, chunkID, agentID)
	if err != nil {
		return nil, err
	}
	if chunk.KnowledgeID != knowledgeID {
		return nil, domain.ErrChunkNotFound
	}
	return chunk, nil
}

func indexEntry(chunk *domain.Chunk, embedding []float32) vectorindex.Entry {
	return vectorindex.Entry{
		ChunkID:     chunk.ID,
		KnowledgeID: chunk.KnowledgeID,
		AgentID:     chunk.AgentID,
		Content:     chunk.Content,
		Metadata:    chunk.Metadata,
		Embedding:   embedding,
	}
}
