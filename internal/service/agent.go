package service

import (
	"context"
	"strings"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/telemetry"
	"github.com/google/uuid"
)

// AgentRepositoryInterface defines the repository interface for agent persistence
type AgentRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetDefault(ctx context.Context) (*domain.Agent, error)
	List(ctx context.Context) ([]*domain.Agent, error)
	Update(ctx context.Context, a *domain.Agent) error
	ClearDefault(ctx context.Context, exceptID string) error
	Delete(ctx context.Context, id string) error
}

// ClientInvalidator invalidates cached provider clients for an agent.
type ClientInvalidator interface {
	Invalidate(agentID string)
	InvalidateAll()
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// AgentService handles business logic for agents and their provider
// configuration.
type AgentService struct {
	agentRepo   AgentRepositoryInterface
	invalidator ClientInvalidator
	uuidGen     UUIDGenerator
}

// NewAgentService creates a new AgentService instance
func NewAgentService(agentRepo AgentRepositoryInterface, invalidator ClientInvalidator) *AgentService {
	return &AgentService{
		agentRepo:   agentRepo,
		invalidator: invalidator,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// CreateAgentInput represents the input for creating an agent
type CreateAgentInput struct {
	Name                string
	Description         string
	Instructions        string
	ProviderName        string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimension  int
	BaseURL             string
	EmbeddingsPath      string
	ChatCompletionsPath string
	APIKey              string
	IsDefault           bool
	Temperature         *float64
	TopP                *float64
	MaxTokens           *int
}

// UpdateAgentInput represents the input for updating an agent's configuration
type UpdateAgentInput struct {
	AgentID             string
	Name                string
	Description         string
	Instructions        string
	ProviderName        string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimension  int
	BaseURL             string
	EmbeddingsPath      string
	ChatCompletionsPath string
	APIKey              string
	IsDefault           bool
	Temperature         *float64
	TopP                *float64
	MaxTokens           *int
}

// Create creates a new agent with validated provider configuration.
func (s *AgentService) Create(ctx context.Context, input CreateAgentInput) (*domain.Agent, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	agent := &domain.Agent{
		ID:                  s.uuidGen.NewString(),
		Name:                input.Name,
		Description:         input.Description,
		Instructions:        input.Instructions,
		ProviderName:        strings.ToLower(input.ProviderName),
		ChatModel:           input.ChatModel,
		EmbeddingModel:      input.EmbeddingModel,
		EmbeddingDimension:  input.EmbeddingDimension,
		BaseURL:             input.BaseURL,
		EmbeddingsPath:      input.EmbeddingsPath,
		ChatCompletionsPath: input.ChatCompletionsPath,
		APIKey:              input.APIKey,
		IsDefault:           input.IsDefault,
		Temperature:         domain.DefaultTemperature,
		TopP:                domain.DefaultTopP,
		MaxTokens:           domain.DefaultMaxTokens,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	applyChatParams(agent, input.Temperature, input.TopP, input.MaxTokens)

	if err := domain.ValidateAgent(agent); err != nil {
		return nil, err
	}

	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return nil, err
	}

	if agent.IsDefault {
		if err := s.agentRepo.ClearDefault(ctx, agent.ID); err != nil {
			return nil, err
		}
	}

	return agent, nil
}

// GetByID retrieves an agent by ID
func (s *AgentService) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return s.agentRepo.GetByID(ctx, id)
}

// GetDefault retrieves the default agent
func (s *AgentService) GetDefault(ctx context.Context) (*domain.Agent, error) {
	return s.agentRepo.GetDefault(ctx)
}

// List retrieves all agents
func (s *AgentService) List(ctx context.Context) ([]*domain.Agent, error) {
	return s.agentRepo.List(ctx)
}

// Update rewrites an agent's configuration and invalidates its cached
// provider clients. The invalidation is part of the update contract: a stale
// client after a credential or model change is a correctness bug.
func (s *AgentService) Update(ctx context.Context, input UpdateAgentInput) (*domain.Agent, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.Update", telemetry.SpanAttributes{
		AgentID:   input.AgentID,
		Operation: "update",
	})
	defer span.End()

	agent, err := s.agentRepo.GetByID(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}

	agent.Name = input.Name
	agent.Description = input.Description
	agent.Instructions = input.Instructions
	agent.ProviderName = strings.ToLower(input.ProviderName)
	agent.ChatModel = input.ChatModel
	agent.EmbeddingModel = input.EmbeddingModel
	agent.EmbeddingDimension = input.EmbeddingDimension
	agent.BaseURL = input.BaseURL
	agent.EmbeddingsPath = input.EmbeddingsPath
	agent.ChatCompletionsPath = input.ChatCompletionsPath
	agent.APIKey = input.APIKey
	agent.IsDefault = input.IsDefault
	applyChatParams(agent, input.Temperature, input.TopP, input.MaxTokens)

	if err := domain.ValidateAgent(agent); err != nil {
		return nil, err
	}

	if err := s.agentRepo.Update(ctx, agent); err != nil {
		return nil, err
	}

	if agent.IsDefault {
		if err := s.agentRepo.ClearDefault(ctx, agent.ID); err != nil {
			return nil, err
		}
	}

	s.invalidator.Invalidate(agent.ID)

	return agent, nil
}

// Delete removes an agent and invalidates its cached provider clients.
// Knowledge sources, chunks and conversations cascade at the schema level.
func (s *AgentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.Delete", telemetry.SpanAttributes{
		AgentID:   id,
		Operation: "delete",
	})
	defer span.End()

	if err := s.agentRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidator.Invalidate(id)
	return nil
}

func applyChatParams(agent *domain.Agent, temperature, topP *float64, maxTokens *int) {
	if temperature != nil {
		agent.Temperature = *temperature
	}
	if topP != nil {
		agent.TopP = *topP
	}
	if maxTokens != nil {
		agent.MaxTokens = *maxTokens
	}
}
