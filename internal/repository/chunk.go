package repository

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const chunkColumns = `id, knowledge_id, agent_id, chunk_order, content, metadata,
	embedding_768, embedding_1536, index_status, created_at, updated_at`

// ChunkRepository persists knowledge chunks. The chunk row is the source of
// truth for content and order; the vector index holds only a searchable
// projection of it.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Create(ctx context.Context, c *domain.Chunk) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_chunks (`+chunkColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.KnowledgeID, c.AgentID, c.ChunkOrder, c.Content, c.Metadata,
		nullableVector(c.Embedding768), nullableVector(c.Embedding1536), c.IndexStatus, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrChunkOrderTaken
	}
	return err
}

func (r *ChunkRepository) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM knowledge_chunks WHERE id = $1`,
		id,
	)
	return scanChunk(row)
}

// GetForAgent fetches a chunk only if it belongs to the agent. A chunk owned
// by a different agent is reported as not found.
func (r *ChunkRepository) GetForAgent(ctx context.Context, id, agentID string) (*domain.Chunk, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM knowledge_chunks WHERE id = $1 AND agent_id = $2`,
		id, agentID,
	)
	return scanChunk(row)
}

// Update rewrites a chunk's content, metadata, embedding columns and index
// status. Both embedding columns are written so a dimension change clears the
// previously populated column.
func (r *ChunkRepository) Update(ctx context.Context, c *domain.Chunk) error {
	c.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks SET
			content = $1, metadata = $2, embedding_768 = $3, embedding_1536 = $4,
			index_status = $5, updated_at = $6
		 WHERE id = $7`,
		c.Content, c.Metadata, nullableVector(c.Embedding768), nullableVector(c.Embedding1536),
		c.IndexStatus, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

func (r *ChunkRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

func (r *ChunkRepository) DeleteByKnowledge(ctx context.Context, knowledgeID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE knowledge_id = $1`,
		knowledgeID,
	)
	return err
}

func (r *ChunkRepository) ListByKnowledge(ctx context.Context, knowledgeID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+` FROM knowledge_chunks WHERE knowledge_id = $1 ORDER BY chunk_order ASC`,
		knowledgeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListByKnowledgePage returns one page of a knowledge source's chunks in
// ascending order, resuming after afterOrder.
func (r *ChunkRepository) ListByKnowledgePage(ctx context.Context, knowledgeID string, afterOrder, limit int) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+` FROM knowledge_chunks
		 WHERE knowledge_id = $1 AND chunk_order > $2
		 ORDER BY chunk_order ASC
		 LIMIT $3`,
		knowledgeID, afterOrder, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func (r *ChunkRepository) ListByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	if len(ids) == 0 {
		return []*domain.Chunk{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+` FROM knowledge_chunks WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// MaxChunkOrder returns the highest chunk_order within a knowledge source, or
// 0 when the source has no chunks yet.
func (r *ChunkRepository) MaxChunkOrder(ctx context.Context, knowledgeID string) (int, error) {
	var max int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(chunk_order), 0) FROM knowledge_chunks WHERE knowledge_id = $1`,
		knowledgeID,
	).Scan(&max)
	return max, err
}

// ListPendingIndex returns chunks whose vector index write has not succeeded
// yet, oldest first, for the reconciliation worker.
func (r *ChunkRepository) ListPendingIndex(ctx context.Context, limit int) ([]*domain.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+` FROM knowledge_chunks
		 WHERE index_status = $1
		 ORDER BY updated_at ASC
		 LIMIT $2`,
		domain.IndexStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func (r *ChunkRepository) UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks SET index_status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// AcquireOrderLock serializes order allocation for one knowledge source. It
// takes a transaction-scoped advisory lock, so it is only meaningful inside a
// transaction; the lock releases on commit or rollback.
func (r *ChunkRepository) AcquireOrderLock(ctx context.Context, knowledgeID string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, orderLockKey(knowledgeID))
	return err
}

func orderLockKey(knowledgeID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("chunk_order:" + knowledgeID))
	return int64(h.Sum64())
}

func scanChunk(row pgx.Row) (*domain.Chunk, error) {
	var c domain.Chunk
	var e768, e1536 *pgvector.Vector
	err := row.Scan(
		&c.ID, &c.KnowledgeID, &c.AgentID, &c.ChunkOrder, &c.Content, &c.Metadata,
		&e768, &e1536, &c.IndexStatus, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	if e768 != nil {
		c.Embedding768 = e768.Slice()
	}
	if e1536 != nil {
		c.Embedding1536 = e1536.Slice()
	}
	return &c, nil
}

func scanChunkRows(rows pgx.Rows) ([]*domain.Chunk, error) {
	var chunks []*domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
