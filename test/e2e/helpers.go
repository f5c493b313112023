//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/agentkb/agentkb/internal/api/handlers"
	"github.com/agentkb/agentkb/internal/chunking"
	"github.com/agentkb/agentkb/internal/provider"
	"github.com/agentkb/agentkb/internal/repository"
	"github.com/agentkb/agentkb/internal/server"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/agentkb/agentkb/internal/testutil"
	"github.com/agentkb/agentkb/internal/tools"
	"github.com/agentkb/agentkb/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a pgvector container
// and an in-process server. Provider clients are deterministic stubs so the
// full pipeline runs without external API calls.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Reset empties every table so a test can continue against a clean
// database without paying for another container.
func (e *E2ETestEnv) Reset() {
	if err := testutil.TruncateAll(e.Ctx, e.Pool); err != nil {
		e.T.Fatalf("failed to reset database: %v", err)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PUT", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// CreateAgent creates a test agent and returns its id.
func (e *E2ETestEnv) CreateAgent(name string) string {
	resp, err := e.Post("/agents", map[string]interface{}{
		"name":                name,
		"provider":            "openai",
		"chat_model":          "gpt-4o-mini",
		"embedding_model":     "text-embedding-3-small",
		"embedding_dimension": 768,
		"api_key":             "test-key",
	})
	if err != nil {
		e.T.Fatalf("failed to create agent: %v", err)
	}

	var agent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &agent); err != nil {
		e.T.Fatalf("failed to parse agent: %v", err)
	}
	return agent.ID
}

// CreateKnowledge creates a knowledge source for an agent and returns its id.
func (e *E2ETestEnv) CreateKnowledge(agentID, name string) string {
	resp, err := e.Post("/agents/"+agentID+"/knowledge", map[string]string{
		"name":        name,
		"source_type": "MANUAL",
	})
	if err != nil {
		e.T.Fatalf("failed to create knowledge source: %v", err)
	}

	var source struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &source); err != nil {
		e.T.Fatalf("failed to parse knowledge source: %v", err)
	}
	return source.ID
}

// startServer starts an in-process HTTP server with stubbed provider clients
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	agentRepo := repository.NewAgentRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	index := vectorindex.NewPgVectorIndex(pool)

	clients := &stubClientSource{dimensions: 768}

	splitter, err := chunking.NewSplitter(nil)
	if err != nil {
		t.Fatalf("failed to build splitter: %v", err)
	}

	agentSvc := service.NewAgentService(agentRepo, clients)
	chunkSvc := service.NewChunkService(knowledgeRepo, chunkRepo, index, clients, txRunner)
	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, chunkRepo, index)
	importSvc := service.NewImportService(knowledgeRepo, chunking.NewTextExtractor(), splitter, chunkSvc, nil)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, clients)

	registry := tools.NewRegistry()
	chatSvc := service.NewChatService(agentRepo, knowledgeRepo, conversationSvc, messageRepo, clients, chunkSvc, registry)

	router := server.NewRouter(server.RouterConfig{
		AgentHandler:        handlers.NewAgentHandler(agentSvc),
		KnowledgeHandler:    handlers.NewKnowledgeHandler(knowledgeSvc, importSvc),
		ChunkHandler:        handlers.NewChunkHandler(chunkSvc),
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		ChatHandler:         handlers.NewChatHandler(chatSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stubClientSource satisfies the embedding and chat client sources with
// deterministic in-process implementations.
type stubClientSource struct {
	dimensions int
}

func (s *stubClientSource) EmbeddingClient(ctx context.Context, agentID string) (provider.EmbeddingClient, error) {
	return &stubEmbeddingClient{dimensions: s.dimensions}, nil
}

func (s *stubClientSource) ChatClient(ctx context.Context, agentID string) (provider.ChatClient, error) {
	return &stubChatClient{}, nil
}

func (s *stubClientSource) Invalidate(agentID string) {}
func (s *stubClientSource) InvalidateAll()            {}

// stubEmbeddingClient hashes words into vector buckets, so texts sharing
// words produce similar vectors. Deterministic and cheap.
type stubEmbeddingClient struct {
	dimensions int
}

func (c *stubEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%c.dimensions] += 1.0
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (c *stubEmbeddingClient) Dimensions() int {
	return c.dimensions
}

type stubChatClient struct{}

func (c *stubChatClient) StreamChat(ctx context.Context, req provider.ChatRequest) (provider.ChatStream, error) {
	return &stubChatStream{fragments: []string{"Hello", " from", " the", " stub."}}, nil
}

func (c *stubChatClient) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return "Stub Conversation", nil
}

type stubChatStream struct {
	fragments []string
	pos       int
}

func (s *stubChatStream) Recv() (provider.ChatDelta, error) {
	if s.pos >= len(s.fragments) {
		return provider.ChatDelta{}, io.EOF
	}
	delta := provider.ChatDelta{Content: s.fragments[s.pos]}
	s.pos++
	if s.pos == len(s.fragments) {
		delta.FinishReason = provider.FinishStop
	}
	return delta, nil
}

func (s *stubChatStream) Close() error { return nil }
