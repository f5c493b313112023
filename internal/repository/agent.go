package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const agentColumns = `id, name, description, instructions,
	provider_name, chat_model, embedding_model, embedding_dimension,
	base_url, embeddings_path, chat_completions_path, api_key,
	is_default, temperature, top_p, max_tokens, created_at, updated_at`

type AgentRepository struct {
	db dbtx
}

func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: pool}
}

func NewAgentRepositoryWithTx(tx pgx.Tx) *AgentRepository {
	return &AgentRepository{db: tx}
}

func (r *AgentRepository) Create(ctx context.Context, a *domain.Agent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO agents (`+agentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.Name, a.Description, a.Instructions,
		a.ProviderName, a.ChatModel, a.EmbeddingModel, a.EmbeddingDimension,
		nullableString(a.BaseURL), nullableString(a.EmbeddingsPath), nullableString(a.ChatCompletionsPath), a.APIKey,
		a.IsDefault, a.Temperature, a.TopP, a.MaxTokens, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAgentAlreadyExists
	}
	return err
}

func (r *AgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`,
		id,
	)
	return scanAgent(row)
}

func (r *AgentRepository) GetByName(ctx context.Context, name string) (*domain.Agent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE name = $1`,
		name,
	)
	return scanAgent(row)
}

// GetDefault returns the agent flagged as the default, if any.
func (r *AgentRepository) GetDefault(ctx context.Context) (*domain.Agent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE is_default ORDER BY created_at ASC LIMIT 1`,
	)
	return scanAgent(row)
}

func (r *AgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (r *AgentRepository) Update(ctx context.Context, a *domain.Agent) error {
	a.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE agents SET
			name = $1, description = $2, instructions = $3,
			provider_name = $4, chat_model = $5, embedding_model = $6, embedding_dimension = $7,
			base_url = $8, embeddings_path = $9, chat_completions_path = $10, api_key = $11,
			is_default = $12, temperature = $13, top_p = $14, max_tokens = $15, updated_at = $16
		 WHERE id = $17`,
		a.Name, a.Description, a.Instructions,
		a.ProviderName, a.ChatModel, a.EmbeddingModel, a.EmbeddingDimension,
		nullableString(a.BaseURL), nullableString(a.EmbeddingsPath), nullableString(a.ChatCompletionsPath), a.APIKey,
		a.IsDefault, a.Temperature, a.TopP, a.MaxTokens, a.UpdatedAt, a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAgentAlreadyExists
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

// ClearDefault unsets the default flag on every agent except the given one.
func (r *AgentRepository) ClearDefault(ctx context.Context, exceptID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE agents SET is_default = FALSE WHERE is_default AND id <> $1`,
		exceptID,
	)
	return err
}

func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM agents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var a domain.Agent
	var baseURL, embeddingsPath, chatPath *string
	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &a.Instructions,
		&a.ProviderName, &a.ChatModel, &a.EmbeddingModel, &a.EmbeddingDimension,
		&baseURL, &embeddingsPath, &chatPath, &a.APIKey,
		&a.IsDefault, &a.Temperature, &a.TopP, &a.MaxTokens, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, err
	}
	if baseURL != nil {
		a.BaseURL = *baseURL
	}
	if embeddingsPath != nil {
		a.EmbeddingsPath = *embeddingsPath
	}
	if chatPath != nil {
		a.ChatCompletionsPath = *chatPath
	}
	return &a, nil
}
