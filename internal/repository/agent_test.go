//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgentRow(name string) *domain.Agent {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Agent{
		ID:                 uuid.NewString(),
		Name:               name,
		ProviderName:       "openai",
		ChatModel:          "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: domain.Dimension768,
		APIKey:             "sk-test",
		Temperature:        domain.DefaultTemperature,
		TopP:               domain.DefaultTopP,
		MaxTokens:          domain.DefaultMaxTokens,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestAgentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	a := newAgentRow("support-bot")
	a.BaseURL = "https://api.example.com"
	require.NoError(t, repo.Create(ctx, a))

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, retrieved.Name)
	assert.Equal(t, a.EmbeddingDimension, retrieved.EmbeddingDimension)
	assert.Equal(t, "https://api.example.com", retrieved.BaseURL)
	assert.Empty(t, retrieved.EmbeddingsPath)

	byName, err := repo.GetByName(ctx, "support-bot")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)
}

func TestAgentRepository_DuplicateName(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	require.NoError(t, repo.Create(ctx, newAgentRow("support-bot")))

	err := repo.Create(ctx, newAgentRow("support-bot"))
	assert.ErrorIs(t, err, domain.ErrAgentAlreadyExists)
}

func TestAgentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestAgentRepository_DefaultFlag(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	first := newAgentRow("first")
	first.IsDefault = true
	require.NoError(t, repo.Create(ctx, first))

	second := newAgentRow("second")
	second.IsDefault = true
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.ClearDefault(ctx, second.ID))

	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	old, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsDefault)
}

func TestAgentRepository_Update(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	a := newAgentRow("support-bot")
	require.NoError(t, repo.Create(ctx, a))

	a.ChatModel = "gpt-4o"
	a.Temperature = 0.2
	a.APIKey = "sk-rotated"
	require.NoError(t, repo.Update(ctx, a))

	retrieved, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", retrieved.ChatModel)
	assert.Equal(t, 0.2, retrieved.Temperature)
	assert.Equal(t, "sk-rotated", retrieved.APIKey)
}

func TestAgentRepository_Update_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	err := repo.Update(ctx, newAgentRow("ghost"))
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestAgentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	a := newAgentRow("support-bot")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Delete(ctx, a.ID))

	_, err := repo.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	err = repo.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}
