// Package handlers contains the chi HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentkb/agentkb/internal/api"
	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/go-chi/chi/v5"
)

type AgentService interface {
	Create(ctx context.Context, input service.CreateAgentInput) (*domain.Agent, error)
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetDefault(ctx context.Context) (*domain.Agent, error)
	List(ctx context.Context) ([]*domain.Agent, error)
	Update(ctx context.Context, input service.UpdateAgentInput) (*domain.Agent, error)
	Delete(ctx context.Context, id string) error
}

type AgentHandler struct {
	svc AgentService
}

func NewAgentHandler(svc AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

type AgentRequest struct {
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Instructions        string   `json:"instructions"`
	Provider            string   `json:"provider"`
	ChatModel           string   `json:"chat_model"`
	EmbeddingModel      string   `json:"embedding_model"`
	EmbeddingDimension  int      `json:"embedding_dimension"`
	BaseURL             string   `json:"base_url"`
	EmbeddingsPath      string   `json:"embeddings_path"`
	ChatCompletionsPath string   `json:"chat_completions_path"`
	APIKey              string   `json:"api_key"`
	IsDefault           bool     `json:"is_default"`
	Temperature         *float64 `json:"temperature"`
	TopP                *float64 `json:"top_p"`
	MaxTokens           *int     `json:"max_tokens"`
}

// AgentResponse never echoes the API key back.
type AgentResponse struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Instructions       string  `json:"instructions"`
	Provider           string  `json:"provider"`
	ChatModel          string  `json:"chat_model"`
	EmbeddingModel     string  `json:"embedding_model"`
	EmbeddingDimension int     `json:"embedding_dimension"`
	BaseURL            string  `json:"base_url,omitempty"`
	IsDefault          bool    `json:"is_default"`
	Temperature        float64 `json:"temperature"`
	TopP               float64 `json:"top_p"`
	MaxTokens          int     `json:"max_tokens"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func agentToResponse(a *domain.Agent) *AgentResponse {
	return &AgentResponse{
		ID:                 a.ID,
		Name:               a.Name,
		Description:        a.Description,
		Instructions:       a.Instructions,
		Provider:           a.ProviderName,
		ChatModel:          a.ChatModel,
		EmbeddingModel:     a.EmbeddingModel,
		EmbeddingDimension: a.EmbeddingDimension,
		BaseURL:            a.BaseURL,
		IsDefault:          a.IsDefault,
		Temperature:        a.Temperature,
		TopP:               a.TopP,
		MaxTokens:          a.MaxTokens,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          a.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent, err := h.svc.Create(r.Context(), service.CreateAgentInput{
		Name:                req.Name,
		Description:         req.Description,
		Instructions:        req.Instructions,
		ProviderName:        req.Provider,
		ChatModel:           req.ChatModel,
		EmbeddingModel:      req.EmbeddingModel,
		EmbeddingDimension:  req.EmbeddingDimension,
		BaseURL:             req.BaseURL,
		EmbeddingsPath:      req.EmbeddingsPath,
		ChatCompletionsPath: req.ChatCompletionsPath,
		APIKey:              req.APIKey,
		IsDefault:           req.IsDefault,
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		MaxTokens:           req.MaxTokens,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, agentToResponse(agent))
}

func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, agentToResponse(agent))
}

func (h *AgentHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	agent, err := h.svc.GetDefault(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, agentToResponse(agent))
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*AgentResponse, 0, len(agents))
	for _, a := range agents {
		responses = append(responses, agentToResponse(a))
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent, err := h.svc.Update(r.Context(), service.UpdateAgentInput{
		AgentID:             chi.URLParam(r, "agentID"),
		Name:                req.Name,
		Description:         req.Description,
		Instructions:        req.Instructions,
		ProviderName:        req.Provider,
		ChatModel:           req.ChatModel,
		EmbeddingModel:      req.EmbeddingModel,
		EmbeddingDimension:  req.EmbeddingDimension,
		BaseURL:             req.BaseURL,
		EmbeddingsPath:      req.EmbeddingsPath,
		ChatCompletionsPath: req.ChatCompletionsPath,
		APIKey:              req.APIKey,
		IsDefault:           req.IsDefault,
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		MaxTokens:           req.MaxTokens,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, agentToResponse(agent))
}

func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "agentID")); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusNoContent, nil)
}
