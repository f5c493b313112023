//go:build e2e

package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestChunkLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	agentID := env.CreateAgent("lifecycle-agent")
	knowledgeID := env.CreateKnowledge(agentID, "docs")

	base := "/agents/" + agentID + "/knowledge/" + knowledgeID

	// Add chunks and verify order allocation.
	var chunkIDs []string
	for _, content := range []string{
		"postgres is a relational database",
		"redis is an in-memory cache",
		"kafka is a message broker",
	} {
		resp, err := env.Post(base+"/chunks", map[string]string{"content": content})
		if err != nil {
			t.Fatalf("failed to add chunk: %v", err)
		}
		var chunk struct {
			ID          string `json:"id"`
			Order       int    `json:"order"`
			IndexStatus string `json:"index_status"`
		}
		if err := json.Unmarshal(resp.Data, &chunk); err != nil {
			t.Fatalf("failed to parse chunk: %v", err)
		}
		if chunk.IndexStatus != "indexed" {
			t.Fatalf("expected chunk to be indexed, got %s", chunk.IndexStatus)
		}
		chunkIDs = append(chunkIDs, chunk.ID)
	}

	// List preserves ascending order.
	resp, err := env.Get(base + "/chunks")
	if err != nil {
		t.Fatalf("failed to list chunks: %v", err)
	}
	var chunks []struct {
		ID    string `json:"id"`
		Order int    `json:"order"`
	}
	if err := json.Unmarshal(resp.Data, &chunks); err != nil {
		t.Fatalf("failed to parse chunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Order != i+1 {
			t.Fatalf("expected order %d at position %d, got %d", i+1, i, c.Order)
		}
	}

	// Search finds the most related chunk first.
	resp, err = env.Post(base+"/chunks/search", map[string]interface{}{
		"query": "relational database postgres",
		"top_k": 3,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	var matches []struct {
		Chunk struct {
			ID string `json:"id"`
		} `json:"chunk"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(resp.Data, &matches); err != nil {
		t.Fatalf("failed to parse matches: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected search results")
	}
	if matches[0].Chunk.ID != chunkIDs[0] {
		t.Fatalf("expected postgres chunk first, got %s", matches[0].Chunk.ID)
	}

	// Delete a chunk and verify it disappears from search.
	if _, err := env.Delete(base + "/chunks/" + chunkIDs[0]); err != nil {
		t.Fatalf("failed to delete chunk: %v", err)
	}
	resp, err = env.Post(base+"/chunks/search", map[string]interface{}{
		"query": "relational database postgres",
		"top_k": 3,
	})
	if err != nil {
		t.Fatalf("search failed after delete: %v", err)
	}
	matches = nil
	if err := json.Unmarshal(resp.Data, &matches); err != nil {
		t.Fatalf("failed to parse matches: %v", err)
	}
	for _, m := range matches {
		if m.Chunk.ID == chunkIDs[0] {
			t.Fatal("deleted chunk still returned by search")
		}
	}
}

func TestOwnershipIsolation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	agentA := env.CreateAgent("agent-a")
	agentB := env.CreateAgent("agent-b")
	knowledgeA := env.CreateKnowledge(agentA, "private-docs")

	// Agent B cannot see agent A's knowledge source.
	_, err := env.Get("/agents/" + agentB + "/knowledge/" + knowledgeA)
	if err == nil {
		t.Fatal("expected not found for cross-agent knowledge access")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404, got %v", err)
	}

	// Nor search it.
	_, err = env.Post("/agents/"+agentB+"/knowledge/"+knowledgeA+"/chunks/search",
		map[string]interface{}{"query": "anything", "top_k": 3})
	if err == nil {
		t.Fatal("expected not found for cross-agent search")
	}
}

func TestAgentList(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.CreateAgent("first-agent")
	env.CreateAgent("second-agent")

	resp, err := env.Get("/agents")
	if err != nil {
		t.Fatalf("failed to list agents: %v", err)
	}
	var agents []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(resp.Data, &agents); err != nil {
		t.Fatalf("failed to parse agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}

	env.Reset()

	resp, err = env.Get("/agents")
	if err != nil {
		t.Fatalf("failed to list agents after reset: %v", err)
	}
	agents = nil
	if err := json.Unmarshal(resp.Data, &agents); err != nil {
		t.Fatalf("failed to parse agents: %v", err)
	}
	if len(agents) != 0 {
		t.Fatalf("expected no agents after reset, got %d", len(agents))
	}
}

func TestChunkPagination(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	agentID := env.CreateAgent("pager-agent")
	knowledgeID := env.CreateKnowledge(agentID, "paged-docs")
	base := "/agents/" + agentID + "/knowledge/" + knowledgeID

	for i := 0; i < 5; i++ {
		if _, err := env.Post(base+"/chunks", map[string]string{
			"content": "chunk content number " + string(rune('a'+i)),
		}); err != nil {
			t.Fatalf("failed to add chunk: %v", err)
		}
	}

	resp, err := env.Get(base + "/chunks?limit=2")
	if err != nil {
		t.Fatalf("failed to list first page: %v", err)
	}
	var page struct {
		Items []struct {
			Order int `json:"order"`
		} `json:"items"`
		Cursor  string `json:"cursor"`
		HasMore bool   `json:"has_more"`
	}
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		t.Fatalf("failed to parse page: %v", err)
	}
	if len(page.Items) != 2 || !page.HasMore || page.Cursor == "" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	resp, err = env.Get(base + "/chunks?limit=2&cursor=" + page.Cursor)
	if err != nil {
		t.Fatalf("failed to list second page: %v", err)
	}
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		t.Fatalf("failed to parse second page: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Order != 3 {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestChatStream(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	agentID := env.CreateAgent("chat-agent")

	body, _ := json.Marshal(map[string]string{"message": "hello there"})
	req, err := http.NewRequest("POST", env.ServerURL+"/agents/"+agentID+"/chat", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("chat request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %s", ct)
	}

	var content strings.Builder
	var conversationID string
	scanner := bufio.NewScanner(resp.Body)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		switch event {
		case "message":
			var fragment struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal([]byte(data), &fragment); err == nil {
				content.WriteString(fragment.Content)
			}
		case "done":
			var done struct {
				ConversationID string `json:"conversation_id"`
			}
			if err := json.Unmarshal([]byte(data), &done); err == nil {
				conversationID = done.ConversationID
			}
		}
	}

	if content.String() != "Hello from the stub." {
		t.Fatalf("unexpected streamed content: %q", content.String())
	}
	if conversationID == "" {
		t.Fatal("expected a conversation id in the done event")
	}

	// Both turns were persisted.
	listResp, err := env.Get("/agents/" + agentID + "/conversations/" + conversationID + "/messages")
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	var messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(listResp.Data, &messages); err != nil {
		t.Fatalf("failed to parse messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %+v", messages)
	}
}
