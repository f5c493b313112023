package service

import (
	"context"
	"errors"
	"testing"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a validated source", func(t *testing.T) {
		kr := new(MockKnowledgeRepository)
		svc := NewKnowledgeService(kr, new(MockChunkRepository), new(MockVectorIndex))

		kr.On("Create", mock.Anything, mock.MatchedBy(func(k *domain.KnowledgeSource) bool {
			return k.AgentID == "agent-1" && k.Name == "docs" && k.SourceType == domain.SourceTypeManual && k.ID != ""
		})).Return(nil)

		source, err := svc.Create(ctx, CreateKnowledgeInput{
			AgentID:    "agent-1",
			Name:       "docs",
			SourceType: domain.SourceTypeManual,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, source.ID)
		kr.AssertExpectations(t)
	})

	t.Run("rejects an unknown source type", func(t *testing.T) {
		kr := new(MockKnowledgeRepository)
		svc := NewKnowledgeService(kr, new(MockChunkRepository), new(MockVectorIndex))

		_, err := svc.Create(ctx, CreateKnowledgeInput{
			AgentID:    "agent-1",
			Name:       "docs",
			SourceType: "CARRIER_PIGEON",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSourceType)
		kr.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestKnowledgeService_Update(t *testing.T) {
	ctx := context.Background()

	kr := new(MockKnowledgeRepository)
	svc := NewKnowledgeService(kr, new(MockChunkRepository), new(MockVectorIndex))

	existing := ownedSource("kb-1", "agent-1")
	existing.Metadata = map[string]any{"kept": true}

	kr.On("GetForAgent", mock.Anything, "kb-1", "agent-1").Return(existing, nil)
	kr.On("Update", mock.Anything, mock.MatchedBy(func(k *domain.KnowledgeSource) bool {
		return k.Name == "renamed" && k.Metadata["kept"] == true
	})).Return(nil)

	source, err := svc.Update(ctx, UpdateKnowledgeInput{
		AgentID:     "agent-1",
		KnowledgeID: "kb-1",
		Name:        "renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", source.Name)
}

func TestKnowledgeService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes chunks and source then clears the index", func(t *testing.T) {
		kr := new(MockKnowledgeRepository)
		cr := new(MockChunkRepository)
		idx := new(MockVectorIndex)
		svc := NewKnowledgeService(kr, cr, idx)

		kr.On("GetForAgent", mock.Anything, "kb-1", "agent-1").Return(ownedSource("kb-1", "agent-1"), nil)
		cr.On("DeleteByKnowledge", mock.Anything, "kb-1").Return(nil)
		kr.On("Delete", mock.Anything, "kb-1", "agent-1").Return(nil)
		idx.On("DeleteByKnowledge", mock.Anything, "kb-1").Return(nil)

		err := svc.Delete(ctx, "agent-1", "kb-1")
		require.NoError(t, err)
		idx.AssertExpectations(t)
	})

	t.Run("index cleanup failure does not fail the delete", func(t *testing.T) {
		kr := new(MockKnowledgeRepository)
		cr := new(MockChunkRepository)
		idx := new(MockVectorIndex)
		svc := NewKnowledgeService(kr, cr, idx)

		kr.On("GetForAgent", mock.Anything, "kb-1", "agent-1").Return(ownedSource("kb-1", "agent-1"), nil)
		cr.On("DeleteByKnowledge", mock.Anything, "kb-1").Return(nil)
		kr.On("Delete", mock.Anything, "kb-1", "agent-1").Return(nil)
		idx.On("DeleteByKnowledge", mock.Anything, "kb-1").Return(errors.New("index down"))

		assert.NoError(t, svc.Delete(ctx, "agent-1", "kb-1"))
	})

	t.Run("cross-agent delete reads as not found", func(t *testing.T) {
		kr := new(MockKnowledgeRepository)
		cr := new(MockChunkRepository)
		svc := NewKnowledgeService(kr, cr, new(MockVectorIndex))

		kr.On("GetForAgent", mock.Anything, "kb-1", "intruder").Return(nil, domain.ErrKnowledgeNotFound)

		err := svc.Delete(ctx, "intruder", "kb-1")
		assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
		cr.AssertNotCalled(t, "DeleteByKnowledge", mock.Anything, mock.Anything)
	})
}
