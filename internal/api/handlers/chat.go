package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/agentkb/agentkb/internal/api"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	Stream(ctx context.Context, input service.ChatInput, emit func(fragment string) error) (*service.ChatResult, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	KnowledgeID    string `json:"knowledge_id"`
}

type chatFragmentEvent struct {
	Content string `json:"content"`
}

type chatDoneEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type chatErrorEvent struct {
	Error string `json:"error"`
}

// Stream runs one chat turn over Server-Sent Events. Content arrives as
// "message" events; the turn closes with a "done" event carrying the
// conversation and message ids, or an "error" event if the stream failed
// after output had already been sent.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	started := false
	emit := func(fragment string) error {
		started = true
		if err := writeSSE(w, "message", chatFragmentEvent{Content: fragment}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := h.svc.Stream(r.Context(), service.ChatInput{
		AgentID:        chi.URLParam(r, "agentID"),
		ConversationID: req.ConversationID,
		Message:        req.Message,
		KnowledgeID:    req.KnowledgeID,
	}, emit)
	if err != nil {
		// Before the first fragment the response is still a plain JSON error.
		// After it the SSE stream is committed and the error goes in-band.
		if !started {
			api.HandleError(w, err)
			return
		}
		log.Printf("chat handler: stream failed mid-response: %v", err)
		if werr := writeSSE(w, "error", chatErrorEvent{Error: "stream interrupted"}); werr == nil {
			flusher.Flush()
		}
		return
	}

	if err := writeSSE(w, "done", chatDoneEvent{
		ConversationID: result.ConversationID,
		MessageID:      result.MessageID,
	}); err != nil {
		return
	}
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + event + "\n")); err != nil {
		return err
	}
	_, err = w.Write([]byte("data: " + string(data) + "\n\n"))
	return err
}
