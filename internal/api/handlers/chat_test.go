package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatService emits scripted fragments and then succeeds or fails.
type fakeChatService struct {
	fragments []string
	result    *service.ChatResult
	err       error
	gotInput  service.ChatInput
}

func (f *fakeChatService) Stream(ctx context.Context, input service.ChatInput, emit func(string) error) (*service.ChatResult, error) {
	f.gotInput = input
	for _, fragment := range f.fragments {
		if err := emit(fragment); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestChatHandler_Stream(t *testing.T) {
	t.Run("streams fragments and a done event", func(t *testing.T) {
		svc := &fakeChatService{
			fragments: []string{"Hello ", "world."},
			result:    &service.ChatResult{ConversationID: "conv-1", MessageID: "msg-1", Content: "Hello world."},
		}
		handler := NewChatHandler(svc)

		req := chunkRequest(http.MethodPost, "/agents/agent-1/chat", []byte(`{"message":"hi","knowledge_id":"kb-1"}`))
		w := httptest.NewRecorder()
		handler.Stream(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

		body := w.Body.String()
		assert.Contains(t, body, "event: message\ndata: {\"content\":\"Hello \"}\n\n")
		assert.Contains(t, body, "event: message\ndata: {\"content\":\"world.\"}\n\n")
		assert.Contains(t, body, "event: done\ndata: {\"conversation_id\":\"conv-1\",\"message_id\":\"msg-1\"}\n\n")

		assert.Equal(t, "agent-1", svc.gotInput.AgentID)
		assert.Equal(t, "kb-1", svc.gotInput.KnowledgeID)
		assert.Equal(t, "hi", svc.gotInput.Message)
	})

	t.Run("failure before any output is a plain JSON error", func(t *testing.T) {
		svc := &fakeChatService{err: domain.ErrAgentNotFound}
		handler := NewChatHandler(svc)

		req := chunkRequest(http.MethodPost, "/agents/agent-1/chat", []byte(`{"message":"hi"}`))
		w := httptest.NewRecorder()
		handler.Stream(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "agent not found")
		assert.NotContains(t, w.Body.String(), "event:")
	})

	t.Run("failure mid-stream becomes an in-band error event", func(t *testing.T) {
		svc := &fakeChatService{
			fragments: []string{"partial "},
			err:       errors.New("provider reset"),
		}
		handler := NewChatHandler(svc)

		req := chunkRequest(http.MethodPost, "/agents/agent-1/chat", []byte(`{"message":"hi"}`))
		w := httptest.NewRecorder()
		handler.Stream(w, req)

		body := w.Body.String()
		assert.Contains(t, body, "event: message\ndata: {\"content\":\"partial \"}\n\n")
		assert.Contains(t, body, "event: error\ndata: {\"error\":\"stream interrupted\"}\n\n")
		assert.False(t, strings.Contains(body, "event: done"))
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		handler := NewChatHandler(&fakeChatService{})

		req := chunkRequest(http.MethodPost, "/agents/agent-1/chat", []byte(`{`))
		w := httptest.NewRecorder()
		handler.Stream(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
