package service

import (
	"context"
	"testing"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAgentRepository is a mock implementation of AgentRepositoryInterface
type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) Create(ctx context.Context, a *domain.Agent) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetDefault(ctx context.Context) (*domain.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) Update(ctx context.Context, a *domain.Agent) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAgentRepository) ClearDefault(ctx context.Context, exceptID string) error {
	args := m.Called(ctx, exceptID)
	return args.Error(0)
}

func (m *MockAgentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// recordingInvalidator records invalidation calls.
type recordingInvalidator struct {
	invalidated []string
	all         int
}

func (r *recordingInvalidator) Invalidate(agentID string) {
	r.invalidated = append(r.invalidated, agentID)
}

func (r *recordingInvalidator) InvalidateAll() { r.all++ }

func validCreateInput() CreateAgentInput {
	return CreateAgentInput{
		Name:               "support-bot",
		ProviderName:       "OpenAI",
		ChatModel:          "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: domain.Dimension768,
		APIKey:             "sk-test",
	}
}

func TestAgentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates agent with defaults and lowercased provider", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc := NewAgentService(repo, &recordingInvalidator{})

		repo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.Agent) bool {
			return a.Name == "support-bot" &&
				a.ProviderName == "openai" &&
				a.Temperature == domain.DefaultTemperature &&
				a.TopP == domain.DefaultTopP &&
				a.MaxTokens == domain.DefaultMaxTokens &&
				a.ID != ""
		})).Return(nil)

		agent, err := svc.Create(ctx, validCreateInput())
		require.NoError(t, err)
		assert.Equal(t, "openai", agent.ProviderName)
		repo.AssertExpectations(t)
	})

	t.Run("explicit chat parameters override defaults", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc := NewAgentService(repo, &recordingInvalidator{})

		temp := 0.2
		topP := 0.5
		maxTokens := 512
		input := validCreateInput()
		input.Temperature = &temp
		input.TopP = &topP
		input.MaxTokens = &maxTokens

		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		agent, err := svc.Create(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, 0.2, agent.Temperature)
		assert.Equal(t, 0.5, agent.TopP)
		assert.Equal(t, 512, agent.MaxTokens)
	})

	t.Run("marking default clears other defaults", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc := NewAgentService(repo, &recordingInvalidator{})

		input := validCreateInput()
		input.IsDefault = true

		repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		repo.On("ClearDefault", mock.Anything, mock.AnythingOfType("string")).Return(nil)

		_, err := svc.Create(ctx, input)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("invalid configuration never reaches the repository", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc := NewAgentService(repo, &recordingInvalidator{})

		input := validCreateInput()
		input.EmbeddingDimension = 123

		_, err := svc.Create(ctx, input)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAgentService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("update invalidates cached clients", func(t *testing.T) {
		repo := new(MockAgentRepository)
		invalidator := &recordingInvalidator{}
		svc := NewAgentService(repo, invalidator)

		existing := &domain.Agent{
			ID:                 "agent-1",
			Name:               "old-name",
			ProviderName:       "openai",
			ChatModel:          "gpt-4o-mini",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingDimension: domain.Dimension768,
			APIKey:             "sk-old",
		}
		repo.On("GetByID", mock.Anything, "agent-1").Return(existing, nil)
		repo.On("Update", mock.Anything, mock.MatchedBy(func(a *domain.Agent) bool {
			return a.APIKey == "sk-rotated"
		})).Return(nil)

		input := UpdateAgentInput{
			AgentID:            "agent-1",
			Name:               "new-name",
			ProviderName:       "openai",
			ChatModel:          "gpt-4o-mini",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingDimension: domain.Dimension768,
			APIKey:             "sk-rotated",
		}
		agent, err := svc.Update(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, "new-name", agent.Name)
		assert.Equal(t, []string{"agent-1"}, invalidator.invalidated)
	})

	t.Run("missing agent does not invalidate", func(t *testing.T) {
		repo := new(MockAgentRepository)
		invalidator := &recordingInvalidator{}
		svc := NewAgentService(repo, invalidator)

		repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrAgentNotFound)

		_, err := svc.Update(ctx, UpdateAgentInput{AgentID: "missing"})
		assert.ErrorIs(t, err, domain.ErrAgentNotFound)
		assert.Empty(t, invalidator.invalidated)
	})
}

func TestAgentService_Delete(t *testing.T) {
	repo := new(MockAgentRepository)
	invalidator := &recordingInvalidator{}
	svc := NewAgentService(repo, invalidator)

	repo.On("Delete", mock.Anything, "agent-1").Return(nil)

	err := svc.Delete(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-1"}, invalidator.invalidated)
}
