package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAgentService struct {
	mock.Mock
}

func (m *MockAgentService) Create(ctx context.Context, input service.CreateAgentInput) (*domain.Agent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentService) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentService) GetDefault(ctx context.Context) (*domain.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentService) List(ctx context.Context) ([]*domain.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Agent), args.Error(1)
}

func (m *MockAgentService) Update(ctx context.Context, input service.UpdateAgentInput) (*domain.Agent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestAgent() *domain.Agent {
	now := time.Now().UTC()
	return &domain.Agent{
		ID:                 "agent-1",
		Name:               "support-bot",
		ProviderName:       "openai",
		ChatModel:          "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: domain.Dimension768,
		APIKey:             "sk-secret",
		Temperature:        domain.DefaultTemperature,
		TopP:               domain.DefaultTopP,
		MaxTokens:          domain.DefaultMaxTokens,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestAgentHandler_Create(t *testing.T) {
	t.Run("created without echoing the key", func(t *testing.T) {
		mockSvc := new(MockAgentService)
		handler := NewAgentHandler(mockSvc)

		mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateAgentInput) bool {
			return input.Name == "support-bot" && input.ProviderName == "openai" && input.APIKey == "sk-secret"
		})).Return(newTestAgent(), nil)

		body := `{"name":"support-bot","provider":"openai","chat_model":"gpt-4o-mini",` +
			`"embedding_model":"text-embedding-3-small","embedding_dimension":768,"api_key":"sk-secret"}`
		req := httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.Create(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "sk-secret")

		var resp struct {
			Data AgentResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "agent-1", resp.Data.ID)
		assert.Equal(t, domain.DefaultTemperature, resp.Data.Temperature)
	})

	t.Run("invalid configuration maps to 400", func(t *testing.T) {
		mockSvc := new(MockAgentService)
		handler := NewAgentHandler(mockSvc)

		mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedDimension)

		req := httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(`{"name":"x","embedding_dimension":3}`))
		w := httptest.NewRecorder()
		handler.Create(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate name maps to 409", func(t *testing.T) {
		mockSvc := new(MockAgentService)
		handler := NewAgentHandler(mockSvc)

		mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrAgentAlreadyExists)

		req := httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(`{"name":"support-bot"}`))
		w := httptest.NewRecorder()
		handler.Create(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAgentHandler_GetDefault(t *testing.T) {
	mockSvc := new(MockAgentService)
	handler := NewAgentHandler(mockSvc)

	mockSvc.On("GetDefault", mock.Anything).Return(nil, domain.ErrAgentNotFound)

	req := httptest.NewRequest(http.MethodGet, "/agents/default", nil)
	w := httptest.NewRecorder()
	handler.GetDefault(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentHandler_List(t *testing.T) {
	mockSvc := new(MockAgentService)
	handler := NewAgentHandler(mockSvc)

	mockSvc.On("List", mock.Anything).Return([]*domain.Agent{newTestAgent()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []AgentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "support-bot", resp.Data[0].Name)
}
