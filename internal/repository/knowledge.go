package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const knowledgeColumns = `id, agent_id, name, source_type, source_uri, metadata, created_at, updated_at`

type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

func (r *KnowledgeRepository) Create(ctx context.Context, k *domain.KnowledgeSource) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_sources (`+knowledgeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		k.ID, k.AgentID, k.Name, k.SourceType, nullableString(k.SourceURI), k.Metadata, k.CreatedAt, k.UpdatedAt,
	)
	return err
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_sources WHERE id = $1`,
		id,
	)
	return scanKnowledgeSource(row)
}

// GetForAgent fetches a knowledge source only if it belongs to the agent.
// A row owned by a different agent is reported as not found.
func (r *KnowledgeRepository) GetForAgent(ctx context.Context, id, agentID string) (*domain.KnowledgeSource, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_sources WHERE id = $1 AND agent_id = $2`,
		id, agentID,
	)
	return scanKnowledgeSource(row)
}

func (r *KnowledgeRepository) ListByAgent(ctx context.Context, agentID string) ([]*domain.KnowledgeSource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_sources WHERE agent_id = $1 ORDER BY updated_at DESC`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.KnowledgeSource
	for rows.Next() {
		k, err := scanKnowledgeSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, k)
	}
	return sources, rows.Err()
}

func (r *KnowledgeRepository) Update(ctx context.Context, k *domain.KnowledgeSource) error {
	k.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_sources SET name = $1, source_type = $2, source_uri = $3, metadata = $4, updated_at = $5
		 WHERE id = $6 AND agent_id = $7`,
		k.Name, k.SourceType, nullableString(k.SourceURI), k.Metadata, k.UpdatedAt, k.ID, k.AgentID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

func (r *KnowledgeRepository) Delete(ctx context.Context, id, agentID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_sources WHERE id = $1 AND agent_id = $2`,
		id, agentID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

// Touch bumps updated_at, used when chunk mutations change a source's content.
func (r *KnowledgeRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE knowledge_sources SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	return err
}

func scanKnowledgeSource(row pgx.Row) (*domain.KnowledgeSource, error) {
	var k domain.KnowledgeSource
	var sourceURI *string
	err := row.Scan(&k.ID, &k.AgentID, &k.Name, &k.SourceType, &sourceURI, &k.Metadata, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	if sourceURI != nil {
		k.SourceURI = *sourceURI
	}
	return &k, nil
}
