package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/agentkb/agentkb/internal/api"
	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/pagination"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChunkService interface {
	AddChunk(ctx context.Context, input service.AddChunkInput) (*domain.Chunk, error)
	GetChunk(ctx context.Context, agentID, knowledgeID, chunkID string) (*domain.Chunk, error)
	ListChunks(ctx context.Context, agentID, knowledgeID string) ([]*domain.Chunk, error)
	ListChunksPage(ctx context.Context, agentID, knowledgeID, cursor string, limit int) (*pagination.PageResult[*domain.Chunk], error)
	UpdateChunk(ctx context.Context, input service.UpdateChunkInput) (*domain.Chunk, error)
	DeleteChunk(ctx context.Context, agentID, knowledgeID, chunkID string) error
	SearchSimilar(ctx context.Context, input service.SearchInput) ([]service.SearchMatch, error)
}

type ChunkHandler struct {
	svc ChunkService
}

func NewChunkHandler(svc ChunkService) *ChunkHandler {
	return &ChunkHandler{svc: svc}
}

type AddChunkRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Order    int            `json:"order"`
}

type UpdateChunkRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type ChunkResponse struct {
	ID          string         `json:"id"`
	KnowledgeID string         `json:"knowledge_id"`
	AgentID     string         `json:"agent_id"`
	Order       int            `json:"order"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IndexStatus string         `json:"index_status"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type SearchMatchResponse struct {
	Chunk *ChunkResponse `json:"chunk"`
	Score float64        `json:"score"`
}

func chunkToResponse(c *domain.Chunk) *ChunkResponse {
	return &ChunkResponse{
		ID:          c.ID,
		KnowledgeID: c.KnowledgeID,
		AgentID:     c.AgentID,
		Order:       c.ChunkOrder,
		Content:     c.Content,
		Metadata:    c.Metadata,
		IndexStatus: string(c.IndexStatus),
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *ChunkHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunk, err := h.svc.AddChunk(r.Context(), service.AddChunkInput{
		AgentID:     chi.URLParam(r, "agentID"),
		KnowledgeID: chi.URLParam(r, "knowledgeID"),
		Content:     req.Content,
		Metadata:    req.Metadata,
		Order:       req.Order,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, chunkToResponse(chunk))
}

func (h *ChunkHandler) Get(w http.ResponseWriter, r *http.Request) {
	chunk, err := h.svc.GetChunk(r.Context(),
		chi.URLParam(r, "agentID"),
		chi.URLParam(r, "knowledgeID"),
		chi.URLParam(r, "chunkID"),
	)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, chunkToResponse(chunk))
}

// List returns a knowledge source's chunks in ascending order. With a
// "cursor" or "limit" query parameter the listing is paginated; otherwise the
// full ordered list is returned.
func (h *ChunkHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	knowledgeID := chi.URLParam(r, "knowledgeID")

	cursor := r.URL.Query().Get("cursor")
	limitParam := r.URL.Query().Get("limit")

	if cursor == "" && limitParam == "" {
		chunks, err := h.svc.ListChunks(r.Context(), agentID, knowledgeID)
		if err != nil {
			api.HandleError(w, err)
			return
		}

		responses := make([]*ChunkResponse, 0, len(chunks))
		for _, c := range chunks {
			responses = append(responses, chunkToResponse(c))
		}
		api.Success(w, http.StatusOK, responses)
		return
	}

	limit := 0
	if limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.svc.ListChunksPage(r.Context(), agentID, knowledgeID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ChunkResponse, 0, len(page.Items))
	for _, c := range page.Items {
		items = append(items, chunkToResponse(c))
	}
	api.Success(w, http.StatusOK, &pagination.PageResult[*ChunkResponse]{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *ChunkHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunk, err := h.svc.UpdateChunk(r.Context(), service.UpdateChunkInput{
		AgentID:     chi.URLParam(r, "agentID"),
		KnowledgeID: chi.URLParam(r, "knowledgeID"),
		ChunkID:     chi.URLParam(r, "chunkID"),
		Content:     req.Content,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkToResponse(chunk))
}

func (h *ChunkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteChunk(r.Context(),
		chi.URLParam(r, "agentID"),
		chi.URLParam(r, "knowledgeID"),
		chi.URLParam(r, "chunkID"),
	)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusNoContent, nil)
}

func (h *ChunkHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matches, err := h.svc.SearchSimilar(r.Context(), service.SearchInput{
		AgentID:     chi.URLParam(r, "agentID"),
		KnowledgeID: chi.URLParam(r, "knowledgeID"),
		Query:       req.Query,
		TopK:        req.TopK,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchMatchResponse, 0, len(matches))
	for _, m := range matches {
		responses = append(responses, &SearchMatchResponse{
			Chunk: chunkToResponse(m.Chunk),
			Score: m.Score,
		})
	}
	api.Success(w, http.StatusOK, responses)
}
