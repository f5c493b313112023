package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/agentkb/agentkb/internal/api"
	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/go-chi/chi/v5"
)

// maxImportMemory bounds the in-memory portion of multipart parsing; larger
// uploads spill to temp files.
const maxImportMemory = 10 << 20

type KnowledgeService interface {
	Create(ctx context.Context, input service.CreateKnowledgeInput) (*domain.KnowledgeSource, error)
	Get(ctx context.Context, agentID, knowledgeID string) (*domain.KnowledgeSource, error)
	ListByAgent(ctx context.Context, agentID string) ([]*domain.KnowledgeSource, error)
	Update(ctx context.Context, input service.UpdateKnowledgeInput) (*domain.KnowledgeSource, error)
	Delete(ctx context.Context, agentID, knowledgeID string) error
}

type ImportService interface {
	Import(ctx context.Context, input service.ImportInput) (*service.ImportResult, error)
}

type KnowledgeHandler struct {
	svc      KnowledgeService
	importer ImportService
}

func NewKnowledgeHandler(svc KnowledgeService, importer ImportService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, importer: importer}
}

type CreateKnowledgeRequest struct {
	Name       string         `json:"name"`
	SourceType string         `json:"source_type"`
	SourceURI  string         `json:"source_uri"`
	Metadata   map[string]any `json:"metadata"`
}

type UpdateKnowledgeRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type KnowledgeResponse struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	Name       string         `json:"name"`
	SourceType string         `json:"source_type"`
	SourceURI  string         `json:"source_uri,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

type ImportResponse struct {
	FileName      string `json:"file_name"`
	Profile       string `json:"profile"`
	Segments      int    `json:"segments"`
	Imported      int    `json:"imported"`
	IndexFailures int    `json:"index_failures"`
	ArchiveURI    string `json:"archive_uri,omitempty"`
}

func knowledgeToResponse(k *domain.KnowledgeSource) *KnowledgeResponse {
	return &KnowledgeResponse{
		ID:         k.ID,
		AgentID:    k.AgentID,
		Name:       k.Name,
		SourceType: string(k.SourceType),
		SourceURI:  k.SourceURI,
		Metadata:   k.Metadata,
		CreatedAt:  k.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  k.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := h.svc.Create(r.Context(), service.CreateKnowledgeInput{
		AgentID:    chi.URLParam(r, "agentID"),
		Name:       req.Name,
		SourceType: domain.KnowledgeSourceType(req.SourceType),
		SourceURI:  req.SourceURI,
		Metadata:   req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, knowledgeToResponse(source))
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	source, err := h.svc.Get(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "knowledgeID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, knowledgeToResponse(source))
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.ListByAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*KnowledgeResponse, 0, len(sources))
	for _, k := range sources {
		responses = append(responses, knowledgeToResponse(k))
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := h.svc.Update(r.Context(), service.UpdateKnowledgeInput{
		AgentID:     chi.URLParam(r, "agentID"),
		KnowledgeID: chi.URLParam(r, "knowledgeID"),
		Name:        req.Name,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(source))
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "knowledgeID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusNoContent, nil)
}

// Import accepts a multipart upload under the "file" field and runs the
// extract, detect, split, embed pipeline. An optional "profile" form value
// overrides detection.
func (h *KnowledgeHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := h.importer.Import(r.Context(), service.ImportInput{
		AgentID:     chi.URLParam(r, "agentID"),
		KnowledgeID: chi.URLParam(r, "knowledgeID"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Profile:     r.FormValue("profile"),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, &ImportResponse{
		FileName:      result.FileName,
		Profile:       result.Profile,
		Segments:      result.Segments,
		Imported:      result.Imported,
		IndexFailures: result.IndexFailures,
		ArchiveURI:    result.ArchiveURI,
	})
}
