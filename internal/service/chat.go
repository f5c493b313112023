package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/provider"
	"github.com/agentkb/agentkb/internal/telemetry"
	"github.com/agentkb/agentkb/internal/tools"
)

const (
	maxHistoryMessages = 20
	ragSourceLimit     = 3
	ragTopK            = 5
	maxToolIterations  = 3
)

// ChunkSearcher is the slice of ChunkService the chat pipeline depends on.
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, input SearchInput) ([]SearchMatch, error)
}

// ChatService runs streaming chat turns: retrieval-augmented context, the
// provider stream, the tool-call loop, and message persistence.
type ChatService struct {
	agentRepo     AgentRepositoryInterface
	knowledgeRepo KnowledgeRepositoryInterface
	conversations *ConversationService
	messageRepo   MessageRepositoryInterface
	clients       ChatClientSource
	searcher      ChunkSearcher
	registry      *tools.Registry
	uuidGen       UUIDGenerator
}

// NewChatService creates a new ChatService instance
func NewChatService(
	agentRepo AgentRepositoryInterface,
	knowledgeRepo KnowledgeRepositoryInterface,
	conversations *ConversationService,
	messageRepo MessageRepositoryInterface,
	clients ChatClientSource,
	searcher ChunkSearcher,
	registry *tools.Registry,
) *ChatService {
	return &ChatService{
		agentRepo:     agentRepo,
		knowledgeRepo: knowledgeRepo,
		conversations: conversations,
		messageRepo:   messageRepo,
		clients:       clients,
		searcher:      searcher,
		registry:      registry,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

// ChatInput represents one user chat turn
type ChatInput struct {
	AgentID        string
	ConversationID string
	Message        string
	// KnowledgeID narrows retrieval to one knowledge source when non-empty.
	KnowledgeID string
}

// ChatResult reports the completed turn.
type ChatResult struct {
	ConversationID string
	MessageID      string
	Content        string
}

// Stream runs one chat turn, emitting content fragments through emit as they
// arrive. The assistant response is buffered and persisted only after the
// stream completes normally; a cancelled or failed stream persists nothing of
// the partial response.
func (s *ChatService) Stream(ctx context.Context, input ChatInput, emit func(fragment string) error) (*ChatResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Stream", telemetry.SpanAttributes{
		AgentID:        input.AgentID,
		ConversationID: input.ConversationID,
		Operation:      "chat",
	})
	defer span.End()

	if strings.TrimSpace(input.Message) == "" {
		return nil, domain.ErrEmptyContent
	}

	agent, err := s.agentRepo.GetByID(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}

	conversation, firstTurn, err := s.resolveConversation(ctx, input)
	if err != nil {
		return nil, err
	}

	history, err := s.messageRepo.ListByConversation(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	client, err := s.clients.ChatClient(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}

	messages := s.buildPrompt(ctx, agent, history, input)

	now := time.Now().UTC()
	userMessage := &domain.ChatMessage{
		ID:             s.uuidGen.NewString(),
		ConversationID: conversation.ID,
		AgentID:        input.AgentID,
		Role:           domain.MessageRoleUser,
		Content:        input.Message,
		CreatedAt:      now,
	}
	if err := s.messageRepo.Create(ctx, userMessage); err != nil {
		return nil, err
	}

	content, err := s.runStream(ctx, client, messages, input.AgentID, emit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	assistantMessage := &domain.ChatMessage{
		ID:             s.uuidGen.NewString(),
		ConversationID: conversation.ID,
		AgentID:        input.AgentID,
		Role:           domain.MessageRoleAssistant,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, assistantMessage); err != nil {
		return nil, err
	}
	if err := s.conversations.conversationRepo.Touch(ctx, conversation.ID); err != nil {
		log.Printf("chat service: failed to touch conversation %s: %v", conversation.ID, err)
	}

	if firstTurn {
		s.conversations.AutoName(ctx, input.AgentID, conversation.ID, input.Message)
	}

	return &ChatResult{
		ConversationID: conversation.ID,
		MessageID:      assistantMessage.ID,
		Content:        content,
	}, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, input ChatInput) (*domain.Conversation, bool, error) {
	if input.ConversationID == "" {
		conversation, err := s.conversations.Create(ctx, input.AgentID, "")
		return conversation, true, err
	}

	conversation, err := s.conversations.Get(ctx, input.AgentID, input.ConversationID)
	if err != nil {
		return nil, false, err
	}
	count, err := s.messageRepo.CountByConversation(ctx, conversation.ID)
	if err != nil {
		return nil, false, err
	}
	return conversation, count == 0, nil
}

// buildPrompt assembles the system instructions, retrieved knowledge context
// and history into the provider message sequence. Retrieval failures degrade
// to an uncontexted chat rather than failing the turn.
func (s *ChatService) buildPrompt(ctx context.Context, agent *domain.Agent, history []*domain.ChatMessage, input ChatInput) []provider.ChatMessage {
	system := agent.Instructions
	if system == "" {
		system = "You are a helpful assistant."
	}
	if retrieved := s.retrieveContext(ctx, input); retrieved != "" {
		system += "\n\nRelevant knowledge:\n" + retrieved
	}

	messages := make([]provider.ChatMessage, 0, len(history)+2)
	messages = append(messages, provider.ChatMessage{Role: provider.RoleSystem, Content: system})
	for _, m := range history {
		role := provider.RoleUser
		switch m.Role {
		case domain.MessageRoleAssistant:
			role = provider.RoleAssistant
		case domain.MessageRoleSystem:
			role = provider.RoleSystem
		}
		messages = append(messages, provider.ChatMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, provider.ChatMessage{Role: provider.RoleUser, Content: input.Message})
	return messages
}

// retrieveContext searches the agent's knowledge for material related to the
// user message. With an explicit knowledge id only that source is searched;
// otherwise a few of the agent's sources are sampled and merged by score.
func (s *ChatService) retrieveContext(ctx context.Context, input ChatInput) string {
	knowledgeIDs := []string{input.KnowledgeID}
	if input.KnowledgeID == "" {
		sources, err := s.knowledgeRepo.ListByAgent(ctx, input.AgentID)
		if err != nil {
			log.Printf("chat service: failed to list knowledge for agent %s: %v", input.AgentID, err)
			return ""
		}
		knowledgeIDs = knowledgeIDs[:0]
		for i, src := range sources {
			if i >= ragSourceLimit {
				break
			}
			knowledgeIDs = append(knowledgeIDs, src.ID)
		}
	}

	var matches []SearchMatch
	for _, knowledgeID := range knowledgeIDs {
		found, err := s.searcher.SearchSimilar(ctx, SearchInput{
			AgentID:     input.AgentID,
			KnowledgeID: knowledgeID,
			Query:       input.Message,
			TopK:        ragTopK,
		})
		if err != nil {
			log.Printf("chat service: retrieval failed for knowledge %s: %v", knowledgeID, err)
			continue
		}
		matches = append(matches, found...)
	}
	if len(matches) == 0 {
		return ""
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > ragTopK {
		matches = matches[:ragTopK]
	}

	var b strings.Builder
	for _, m := range matches {
		b.WriteString("- ")
		b.WriteString(m.Chunk.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// runStream drives the provider stream through the tool-call loop and
// returns the full buffered assistant content.
func (s *ChatService) runStream(ctx context.Context, client provider.ChatClient, messages []provider.ChatMessage, agentID string, emit func(string) error) (string, error) {
	var buffer strings.Builder
	definitions := s.registry.Definitions()

	for iteration := 0; iteration <= maxToolIterations; iteration++ {
		// Tools are withheld on the last iteration to force a final answer.
		available := definitions
		if iteration == maxToolIterations {
			available = nil
		}

		stream, err := client.StreamChat(ctx, provider.ChatRequest{Messages: messages, Tools: available})
		if err != nil {
			return "", err
		}

		toolCalls, finish, err := s.consumeStream(stream, &buffer, emit)
		if err != nil {
			return "", err
		}

		if finish != provider.FinishToolCalls || len(toolCalls) == 0 {
			return buffer.String(), nil
		}

		messages = append(messages, provider.ChatMessage{
			Role:      provider.RoleAssistant,
			ToolCalls: toolCalls,
		})
		for _, call := range toolCalls {
			result := s.registry.Execute(ctx, agentID, call.Name, json.RawMessage(call.Arguments))
			messages = append(messages, provider.ChatMessage{
				Role:       provider.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return buffer.String(), nil
}

// consumeStream drains one provider stream, appending content fragments to
// the buffer and assembling partial tool calls by index.
func (s *ChatService) consumeStream(stream provider.ChatStream, buffer *strings.Builder, emit func(string) error) ([]provider.ToolCall, string, error) {
	defer stream.Close()

	partial := map[int]*provider.ToolCall{}
	finish := ""

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", err
		}

		if delta.Content != "" {
			buffer.WriteString(delta.Content)
			if err := emit(delta.Content); err != nil {
				return nil, "", err
			}
		}
		for _, tc := range delta.ToolCalls {
			call, ok := partial[tc.Index]
			if !ok {
				call = &provider.ToolCall{}
				partial[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Name != "" {
				call.Name = tc.Name
			}
			call.Arguments += tc.Arguments
		}
		if delta.FinishReason != "" {
			finish = delta.FinishReason
		}
	}

	indexes := make([]int, 0, len(partial))
	for i := range partial {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]provider.ToolCall, 0, len(partial))
	for _, i := range indexes {
		calls = append(calls, *partial[i])
	}
	return calls, finish, nil
}
