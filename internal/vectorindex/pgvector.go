package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorIndex stores entries in the vector_entries table with one nullable
// vector column per supported dimension.
type PgVectorIndex struct {
	pool *pgxpool.Pool
}

func NewPgVectorIndex(pool *pgxpool.Pool) *PgVectorIndex {
	return &PgVectorIndex{pool: pool}
}

func (i *PgVectorIndex) Add(ctx context.Context, e Entry) error {
	column, err := embeddingColumn(e.Embedding)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO vector_entries (chunk_id, knowledge_id, agent_id, content, metadata, dimension, %s, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (chunk_id) DO UPDATE SET
			knowledge_id = EXCLUDED.knowledge_id,
			agent_id = EXCLUDED.agent_id,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			dimension = EXCLUDED.dimension,
			embedding_768 = EXCLUDED.embedding_768,
			embedding_1536 = EXCLUDED.embedding_1536`,
		column,
	)
	_, err = i.pool.Exec(ctx, query,
		e.ChunkID, e.KnowledgeID, e.AgentID, e.Content, e.Metadata, len(e.Embedding),
		pgvector.NewVector(e.Embedding), time.Now().UTC(),
	)
	return err
}

func (i *PgVectorIndex) Delete(ctx context.Context, chunkID string) error {
	_, err := i.pool.Exec(ctx, `DELETE FROM vector_entries WHERE chunk_id = $1`, chunkID)
	return err
}

func (i *PgVectorIndex) DeleteByKnowledge(ctx context.Context, knowledgeID string) error {
	_, err := i.pool.Exec(ctx, `DELETE FROM vector_entries WHERE knowledge_id = $1`, knowledgeID)
	return err
}

func (i *PgVectorIndex) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	column, err := embeddingColumn(embedding)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	query := fmt.Sprintf(
		`SELECT chunk_id, agent_id, 1.0 / (1.0 + (%s <=> $1)) AS score
		 FROM vector_entries
		 WHERE dimension = $2
		 ORDER BY %s <=> $1
		 LIMIT $3`,
		column, column,
	)
	rows, err := i.pool.Query(ctx, query, pgvector.NewVector(embedding), len(embedding), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ChunkID, &m.AgentID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// embeddingColumn routes an embedding to its dimension column. The column
// name is derived from a closed set, never caller input.
func embeddingColumn(embedding []float32) (string, error) {
	if err := validateDimension(embedding); err != nil {
		return "", err
	}
	switch len(embedding) {
	case domain.Dimension768:
		return "embedding_768", nil
	default:
		return "embedding_1536", nil
	}
}
