package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultSearchTopK = 5

// SearchHit is one knowledge search result handed back to the model.
type SearchHit struct {
	ChunkID string
	Order   int
	Content string
	Score   float64
}

// SearchFunc performs an ownership-scoped similarity search.
type SearchFunc func(ctx context.Context, agentID, knowledgeID, query string, topK int) ([]SearchHit, error)

type searchArgs struct {
	KnowledgeID string `json:"knowledgeId"`
	Query       string `json:"query"`
	TopK        int    `json:"topK"`
}

// NewSearchKnowledgeTool builds the built-in search_knowledge tool. The model
// supplies a knowledge source id and a query; results come back as a numbered
// plain-text list.
func NewSearchKnowledgeTool(search SearchFunc) Tool {
	return Tool{
		Name:        "search_knowledge",
		Description: "Search the agent's knowledge base for content relevant to a query. Returns the most similar knowledge chunks.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"knowledgeId": {"type": "string", "description": "ID of the knowledge source to search"},
				"query": {"type": "string", "description": "Natural language search query"},
				"topK": {"type": "integer", "description": "Maximum number of results", "default": 5}
			},
			"required": ["knowledgeId", "query"]
		}`),
		Handler: func(ctx context.Context, agentID string, raw json.RawMessage) (string, error) {
			var args searchArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("invalid search arguments: %w", err)
			}
			if args.TopK <= 0 {
				args.TopK = defaultSearchTopK
			}

			hits, err := search(ctx, agentID, args.KnowledgeID, args.Query, args.TopK)
			if err != nil {
				return "", err
			}
			if len(hits) == 0 {
				return "no matching knowledge found", nil
			}

			var b strings.Builder
			for i, hit := range hits {
				fmt.Fprintf(&b, "%d. (score %.3f) %s\n", i+1, hit.Score, hit.Content)
			}
			return b.String(), nil
		},
	}
}
