// Package tools holds the typed registry of callable tools advertised to the
// chat model. Tools are named descriptors with a JSON schema and a handler,
// not an untyped function map.
package tools

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/agentkb/agentkb/internal/provider"
)

// Handler executes a tool call. Arguments arrive as the raw JSON the model
// produced; the result string is fed back to the model verbatim.
type Handler func(ctx context.Context, agentID string, args json.RawMessage) (string, error)

// Tool is one registered capability.
type Tool struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Handler     Handler
}

// Registry maps tool names to tools. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the registered tools as provider tool definitions, in
// stable name order.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, provider.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs a named tool. An unknown tool name is logged and skipped with
// an explanatory result rather than failing the chat turn.
func (r *Registry) Execute(ctx context.Context, agentID, name string, args json.RawMessage) string {
	tool, ok := r.Lookup(name)
	if !ok {
		log.Printf("tools: unknown tool %q requested by model, skipping", name)
		return "tool not available: " + name
	}

	result, err := tool.Handler(ctx, agentID, args)
	if err != nil {
		log.Printf("tools: %s failed: %v", name, err)
		return "tool execution failed: " + err.Error()
	}
	return result
}
