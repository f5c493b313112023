// Package provider builds and caches per-agent LLM provider clients.
//
// Each agent row carries its own provider configuration (provider name,
// models, base URL, credential). Clients are constructed lazily from that
// configuration through a factory registry and memoized per agent id, since
// provider SDK construction is not free (connection pooling, transport
// setup).
package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agentkb/agentkb/internal/domain"
)

// ChatMessage is one provider-agnostic chat turn.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a fully assembled tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes a callable tool advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatRequest is a streaming chat invocation.
type ChatRequest struct {
	Messages []ChatMessage
	Tools    []ToolDefinition
}

// ChatDelta is one streamed fragment. Content fragments and tool-call
// fragments arrive interleaved; FinishReason is set on the final delta.
type ChatDelta struct {
	Content      string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

// Stream finish reasons surfaced to callers.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// ToolCallDelta is a partial tool call; Arguments accumulate across deltas
// for the same index.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ChatStream yields deltas until io.EOF. Callers must Close it.
type ChatStream interface {
	Recv() (ChatDelta, error)
	Close() error
}

// ChatClient is the chat capability built from an agent's configuration.
type ChatClient interface {
	// StreamChat opens a streaming completion. The stream is unbounded in
	// length; callers consume it incrementally and may cancel via ctx.
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)
	// Complete runs a small non-streaming completion (used for summaries).
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// EmbeddingClient is the embedding capability built from an agent's
// configuration.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the vector size the client is configured to produce.
	Dimensions() int
}

// Factory builds provider clients from an agent configuration snapshot.
// One implementation is registered per provider name.
type Factory interface {
	BuildChatClient(agent *domain.Agent) (ChatClient, error)
	BuildEmbeddingClient(agent *domain.Agent) (EmbeddingClient, error)
}

var factories = map[string]Factory{}

// Register adds a factory under the given provider name. Called from
// factory implementation init functions.
func Register(name string, f Factory) {
	factories[strings.ToLower(name)] = f
}

// FactoryFor resolves the factory for a provider name. Unregistered names
// fail fast with an unsupported-configuration error.
func FactoryFor(name string) (Factory, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeUnsupportedConfig, "unsupported provider: "+name)
	}
	return f, nil
}
