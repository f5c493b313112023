package service

import (
	"context"
	"log"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/telemetry"
	"github.com/agentkb/agentkb/internal/vectorindex"
)

// KnowledgeRepositoryInterface defines the repository interface for knowledge source persistence
type KnowledgeRepositoryInterface interface {
	Create(ctx context.Context, k *domain.KnowledgeSource) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeSource, error)
	GetForAgent(ctx context.Context, id, agentID string) (*domain.KnowledgeSource, error)
	ListByAgent(ctx context.Context, agentID string) ([]*domain.KnowledgeSource, error)
	Update(ctx context.Context, k *domain.KnowledgeSource) error
	Delete(ctx context.Context, id, agentID string) error
	Touch(ctx context.Context, id string) error
}

// KnowledgeService handles business logic for knowledge sources.
type KnowledgeService struct {
	knowledgeRepo KnowledgeRepositoryInterface
	chunkRepo     ChunkRepositoryInterface
	index         vectorindex.Index
	uuidGen       UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(
	knowledgeRepo KnowledgeRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	index vectorindex.Index,
) *KnowledgeService {
	return &KnowledgeService{
		knowledgeRepo: knowledgeRepo,
		chunkRepo:     chunkRepo,
		index:         index,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

// CreateKnowledgeInput represents the input for creating a knowledge source
type CreateKnowledgeInput struct {
	AgentID    string
	Name       string
	SourceType domain.KnowledgeSourceType
	SourceURI  string
	Metadata   map[string]any
}

// UpdateKnowledgeInput represents the input for renaming a knowledge source or
// replacing its metadata
type UpdateKnowledgeInput struct {
	AgentID     string
	KnowledgeID string
	Name        string
	Metadata    map[string]any
}

// Create creates a new knowledge source owned by the agent.
func (s *KnowledgeService) Create(ctx context.Context, input CreateKnowledgeInput) (*domain.KnowledgeSource, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Create", telemetry.SpanAttributes{
		AgentID:   input.AgentID,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	source := &domain.KnowledgeSource{
		ID:         s.uuidGen.NewString(),
		AgentID:    input.AgentID,
		Name:       input.Name,
		SourceType: input.SourceType,
		SourceURI:  input.SourceURI,
		Metadata:   input.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := domain.ValidateKnowledgeSource(source); err != nil {
		return nil, err
	}

	if err := s.knowledgeRepo.Create(ctx, source); err != nil {
		return nil, err
	}

	return source, nil
}

// Get retrieves a knowledge source scoped by agent ownership.
func (s *KnowledgeService) Get(ctx context.Context, agentID, knowledgeID string) (*domain.KnowledgeSource, error) {
	return s.knowledgeRepo.GetForAgent(ctx, knowledgeID, agentID)
}

// ListByAgent retrieves all knowledge sources owned by the agent.
func (s *KnowledgeService) ListByAgent(ctx context.Context, agentID string) ([]*domain.KnowledgeSource, error) {
	return s.knowledgeRepo.ListByAgent(ctx, agentID)
}

// Update renames a knowledge source or replaces its metadata.
func (s *KnowledgeService) Update(ctx context.Context, input UpdateKnowledgeInput) (*domain.KnowledgeSource, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Update", telemetry.SpanAttributes{
		AgentID:     input.AgentID,
		KnowledgeID: input.KnowledgeID,
		Operation:   "update",
	})
	defer span.End()

	source, err := s.knowledgeRepo.GetForAgent(ctx, input.KnowledgeID, input.AgentID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		source.Name = input.Name
	}
	if input.Metadata != nil {
		source.Metadata = input.Metadata
	}

	if err := s.knowledgeRepo.Update(ctx, source); err != nil {
		return nil, err
	}
	return source, nil
}

// Delete removes a knowledge source with its chunks, then clears the vector
// index projection. The relational delete is authoritative; a failed index
// cleanup only leaves stale entries that the search ownership cross-check
// already discards.
func (s *KnowledgeService) Delete(ctx context.Context, agentID, knowledgeID string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Delete", telemetry.SpanAttributes{
		AgentID:     agentID,
		KnowledgeID: knowledgeID,
		Operation:   "delete",
	})
	defer span.End()

	if _, err := s.knowledgeRepo.GetForAgent(ctx, knowledgeID, agentID); err != nil {
		return err
	}

	if err := s.chunkRepo.DeleteByKnowledge(ctx, knowledgeID); err != nil {
		return err
	}
	if err := s.knowledgeRepo.Delete(ctx, knowledgeID, agentID); err != nil {
		return err
	}

	if err := s.index.DeleteByKnowledge(ctx, knowledgeID); err != nil {
		log.Printf("knowledge service: index cleanup failed for knowledge %s: %v", knowledgeID, err)
		telemetry.CaptureError(ctx, err)
	}

	return nil
}
