package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentkb/agentkb/internal/api"
	"github.com/agentkb/agentkb/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ConversationService interface {
	Create(ctx context.Context, agentID, name string) (*domain.Conversation, error)
	Get(ctx context.Context, agentID, conversationID string) (*domain.Conversation, error)
	ListByAgent(ctx context.Context, agentID string) ([]*domain.Conversation, error)
	Rename(ctx context.Context, agentID, conversationID, name string) error
	Delete(ctx context.Context, agentID, conversationID string) error
	ListMessages(ctx context.Context, agentID, conversationID string) ([]*domain.ChatMessage, error)
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type CreateConversationRequest struct {
	Name string `json:"name"`
}

type RenameConversationRequest struct {
	Name string `json:"name"`
}

type ConversationResponse struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

func conversationToResponse(c *domain.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:        c.ID,
		AgentID:   c.AgentID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func messageToResponse(m *domain.ChatMessage) *MessageResponse {
	role := "user"
	switch m.Role {
	case domain.MessageRoleAssistant:
		role = "assistant"
	case domain.MessageRoleSystem:
		role = "system"
	}
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339),
	}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversation, err := h.svc.Create(r.Context(), chi.URLParam(r, "agentID"), req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, conversationToResponse(conversation))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversation, err := h.svc.Get(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "conversationID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, conversationToResponse(conversation))
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.svc.ListByAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		responses = append(responses, conversationToResponse(c))
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.Rename(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "conversationID"), req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	conversation, err := h.svc.Get(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "conversationID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, conversationToResponse(conversation))
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "conversationID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusNoContent, nil)
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.svc.ListMessages(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "conversationID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*MessageResponse, 0, len(messages))
	for _, m := range messages {
		responses = append(responses, messageToResponse(m))
	}
	api.Success(w, http.StatusOK, responses)
}
