package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIFactory_EndpointPathOverrides(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "embed") {
			w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer server.Close()

	agent := testAgent("a1", "openai")
	agent.BaseURL = server.URL + "/v1"
	agent.ChatCompletionsPath = "/api/v3/chat"
	agent.EmbeddingsPath = "api/v3/embed"

	factory := &openAIFactory{}

	chat, err := factory.BuildChatClient(agent)
	require.NoError(t, err)
	answer, err := chat.Complete(context.Background(), "system", "ping", 16)
	require.NoError(t, err)
	assert.Equal(t, "pong", answer)

	embed, err := factory.BuildEmbeddingClient(agent)
	require.NoError(t, err)
	vec, err := embed.Embed(context.Background(), "ping")
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	require.Equal(t, []string{"/api/v3/chat", "/api/v3/embed"}, paths)
}

func TestOpenAIFactory_DefaultPathsWithoutOverrides(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer server.Close()

	agent := testAgent("a1", "openai")
	agent.BaseURL = server.URL + "/v1"

	factory := &openAIFactory{}
	chat, err := factory.BuildChatClient(agent)
	require.NoError(t, err)

	_, err = chat.Complete(context.Background(), "system", "ping", 16)
	require.NoError(t, err)
	require.Equal(t, []string{"/v1/chat/completions"}, paths)
}
