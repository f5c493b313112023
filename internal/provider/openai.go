package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/agentkb/agentkb/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

func init() {
	Register(domain.ProviderOpenAI, &openAIFactory{})
	Register(domain.ProviderAzure, &openAIFactory{azure: true})
}

// openAIFactory builds clients against OpenAI or OpenAI-compatible endpoints
// (custom base URL per agent), and against Azure OpenAI deployments.
type openAIFactory struct {
	azure bool
}

func (f *openAIFactory) newClient(agent *domain.Agent) *openai.Client {
	var cfg openai.ClientConfig
	if f.azure {
		cfg = openai.DefaultAzureConfig(agent.APIKey, agent.BaseURL)
	} else {
		cfg = openai.DefaultConfig(agent.APIKey)
		if agent.BaseURL != "" {
			cfg.BaseURL = agent.BaseURL
		}
	}
	if agent.ChatCompletionsPath != "" || agent.EmbeddingsPath != "" {
		cfg.HTTPClient = &http.Client{
			Transport: &pathOverrideTransport{
				base:           http.DefaultTransport,
				chatPath:       normalizePath(agent.ChatCompletionsPath),
				embeddingsPath: normalizePath(agent.EmbeddingsPath),
			},
		}
	}
	return openai.NewClientWithConfig(cfg)
}

// pathOverrideTransport rewrites the standard chat-completions and embeddings
// request paths to an agent's configured ones, for OpenAI-compatible servers
// that expose them elsewhere.
type pathOverrideTransport struct {
	base           http.RoundTripper
	chatPath       string
	embeddingsPath string
}

func (t *pathOverrideTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var override string
	switch {
	case t.chatPath != "" && strings.HasSuffix(req.URL.Path, "/chat/completions"):
		override = t.chatPath
	case t.embeddingsPath != "" && strings.HasSuffix(req.URL.Path, "/embeddings"):
		override = t.embeddingsPath
	}
	if override == "" {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.URL.Path = override
	clone.URL.RawPath = ""
	return t.base.RoundTrip(clone)
}

func normalizePath(p string) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

func (f *openAIFactory) BuildChatClient(agent *domain.Agent) (ChatClient, error) {
	if agent.APIKey == "" || agent.ChatModel == "" {
		return nil, domain.NewDomainError(domain.ErrCodeUnsupportedConfig, "agent chat configuration incomplete")
	}
	return &openAIChatClient{
		client:      f.newClient(agent),
		model:       agent.ChatModel,
		temperature: float32(agent.Temperature),
		topP:        float32(agent.TopP),
		maxTokens:   agent.MaxTokens,
	}, nil
}

func (f *openAIFactory) BuildEmbeddingClient(agent *domain.Agent) (EmbeddingClient, error) {
	if agent.APIKey == "" || agent.EmbeddingModel == "" {
		return nil, domain.NewDomainError(domain.ErrCodeUnsupportedConfig, "agent embedding configuration incomplete")
	}
	if !domain.SupportedDimension(agent.EmbeddingDimension) {
		return nil, domain.ErrUnsupportedDimension
	}
	return &openAIEmbeddingClient{
		client:     f.newClient(agent),
		model:      openai.EmbeddingModel(agent.EmbeddingModel),
		dimensions: agent.EmbeddingDimension,
	}, nil
}

type openAIChatClient struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
}

func (c *openAIChatClient) StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, "chat provider call failed", err)
	}
	return &openAIChatStream{stream: stream}, nil
}

func (c *openAIChatClient) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, "chat provider call failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.ErrChatFailed
	}
	return resp.Choices[0].Message.Content, nil
}

type openAIChatStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIChatStream) Recv() (ChatDelta, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ChatDelta{}, io.EOF
		}
		return ChatDelta{}, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, "chat stream failed", err)
	}
	if len(resp.Choices) == 0 {
		return ChatDelta{}, nil
	}
	choice := resp.Choices[0]
	delta := ChatDelta{
		Content:      choice.Delta.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		delta.ToolCalls = append(delta.ToolCalls, ToolCallDelta{
			Index:     idx,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return delta, nil
}

func (s *openAIChatStream) Close() error {
	return s.stream.Close()
}

type openAIEmbeddingClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func (c *openAIEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ErrEmptyContent
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      c.model,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, "embedding provider call failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.ErrEmbeddingFailed
	}
	return resp.Data[0].Embedding, nil
}

func (c *openAIEmbeddingClient) Dimensions() int {
	return c.dimensions
}

func toOpenAIMessages(msgs []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		})
	}
	return out
}
