//go:build integration

package vectorindex

import (
	"context"
	"testing"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingAt(dim int, value float32) []float32 {
	vec := make([]float32, dim)
	vec[0] = value
	vec[1] = 1
	return vec
}

func newEntry(knowledgeID, agentID string, embedding []float32) Entry {
	return Entry{
		ChunkID:     uuid.NewString(),
		KnowledgeID: knowledgeID,
		AgentID:     agentID,
		Content:     "indexed content",
		Embedding:   embedding,
	}
}

func TestPgVectorIndex_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgVectorIndex(pool)
	knowledgeID := uuid.NewString()
	agentID := uuid.NewString()

	near := newEntry(knowledgeID, agentID, embeddingAt(domain.Dimension768, 1))
	far := newEntry(knowledgeID, agentID, embeddingAt(domain.Dimension768, -1))
	require.NoError(t, index.Add(ctx, near))
	require.NoError(t, index.Add(ctx, far))

	matches, err := index.Search(ctx, embeddingAt(domain.Dimension768, 1), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, near.ChunkID, matches[0].ChunkID)
	assert.Equal(t, agentID, matches[0].AgentID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestPgVectorIndex_Add_IsAnUpsert(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgVectorIndex(pool)
	entry := newEntry(uuid.NewString(), uuid.NewString(), embeddingAt(domain.Dimension768, 1))
	require.NoError(t, index.Add(ctx, entry))

	entry.Content = "rewritten"
	entry.Embedding = embeddingAt(domain.Dimension768, 2)
	require.NoError(t, index.Add(ctx, entry))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM vector_entries WHERE chunk_id = $1`, entry.ChunkID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPgVectorIndex_Search_DimensionPartition(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgVectorIndex(pool)
	knowledgeID := uuid.NewString()
	agentID := uuid.NewString()

	small := newEntry(knowledgeID, agentID, embeddingAt(domain.Dimension768, 1))
	large := newEntry(knowledgeID, agentID, embeddingAt(domain.Dimension1536, 1))
	require.NoError(t, index.Add(ctx, small))
	require.NoError(t, index.Add(ctx, large))

	matches, err := index.Search(ctx, embeddingAt(domain.Dimension1536, 1), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, large.ChunkID, matches[0].ChunkID)
}

func TestPgVectorIndex_Search_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgVectorIndex(pool)

	_, err := index.Search(ctx, make([]float32, 42), 5)
	assert.ErrorIs(t, err, domain.ErrUnsupportedDimension)

	_, err = index.Search(ctx, make([]float32, domain.Dimension768), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTopK)
}

func TestPgVectorIndex_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	index := NewPgVectorIndex(pool)
	knowledgeID := uuid.NewString()
	agentID := uuid.NewString()

	first := newEntry(knowledgeID, agentID, embeddingAt(domain.Dimension768, 1))
	second := newEntry(knowledgeID, agentID, embeddingAt(domain.Dimension768, 2))
	require.NoError(t, index.Add(ctx, first))
	require.NoError(t, index.Add(ctx, second))

	require.NoError(t, index.Delete(ctx, first.ChunkID))
	// Deleting an absent entry is a no-op.
	require.NoError(t, index.Delete(ctx, first.ChunkID))

	matches, err := index.Search(ctx, embeddingAt(domain.Dimension768, 1), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, index.DeleteByKnowledge(ctx, knowledgeID))

	matches, err = index.Search(ctx, embeddingAt(domain.Dimension768, 1), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
