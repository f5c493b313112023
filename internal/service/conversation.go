package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/provider"
	"github.com/agentkb/agentkb/internal/telemetry"
)

// ConversationRepositoryInterface defines the repository interface for conversation persistence
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetForAgent(ctx context.Context, id, agentID string) (*domain.Conversation, error)
	ListByAgent(ctx context.Context, agentID string) ([]*domain.Conversation, error)
	Rename(ctx context.Context, id, agentID, name string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id, agentID string) error
}

// MessageRepositoryInterface defines the repository interface for chat message persistence
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.ChatMessage) error
	ListByConversation(ctx context.Context, conversationID string) ([]*domain.ChatMessage, error)
	CountByConversation(ctx context.Context, conversationID string) (int, error)
}

// ChatClientSource resolves the chat client for an agent.
type ChatClientSource interface {
	ChatClient(ctx context.Context, agentID string) (provider.ChatClient, error)
}

const (
	defaultConversationName = "New Conversation"
	nameMaxLen              = 50
	nameSummaryTokens       = 20
)

// ConversationService handles conversations and their naming.
type ConversationService struct {
	conversationRepo ConversationRepositoryInterface
	messageRepo      MessageRepositoryInterface
	clients          ChatClientSource
	uuidGen          UUIDGenerator
}

// NewConversationService creates a new ConversationService instance
func NewConversationService(
	conversationRepo ConversationRepositoryInterface,
	messageRepo MessageRepositoryInterface,
	clients ChatClientSource,
) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		clients:          clients,
		uuidGen:          &DefaultUUIDGenerator{},
	}
}

// Create starts a new conversation for the agent.
func (s *ConversationService) Create(ctx context.Context, agentID, name string) (*domain.Conversation, error) {
	if name == "" {
		name = defaultConversationName
	}
	now := time.Now().UTC()
	conversation := &domain.Conversation{
		ID:        s.uuidGen.NewString(),
		AgentID:   agentID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversationRepo.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// Get retrieves a conversation scoped by agent ownership.
func (s *ConversationService) Get(ctx context.Context, agentID, conversationID string) (*domain.Conversation, error) {
	return s.conversationRepo.GetForAgent(ctx, conversationID, agentID)
}

// ListByAgent retrieves the agent's conversations, most recent first.
func (s *ConversationService) ListByAgent(ctx context.Context, agentID string) ([]*domain.Conversation, error) {
	return s.conversationRepo.ListByAgent(ctx, agentID)
}

// Rename sets a conversation's name.
func (s *ConversationService) Rename(ctx context.Context, agentID, conversationID, name string) error {
	if name == "" {
		return domain.ErrMissingRequiredField
	}
	return s.conversationRepo.Rename(ctx, conversationID, agentID, name)
}

// Delete removes a conversation; messages cascade at the schema level.
func (s *ConversationService) Delete(ctx context.Context, agentID, conversationID string) error {
	return s.conversationRepo.Delete(ctx, conversationID, agentID)
}

// ListMessages returns a conversation's messages in chronological order.
func (s *ConversationService) ListMessages(ctx context.Context, agentID, conversationID string) ([]*domain.ChatMessage, error) {
	if _, err := s.conversationRepo.GetForAgent(ctx, conversationID, agentID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByConversation(ctx, conversationID)
}

// AutoName names a still-unnamed conversation from its first question, using
// a small summarization completion with a truncation fallback. Best-effort:
// naming never fails the chat turn.
func (s *ConversationService) AutoName(ctx context.Context, agentID, conversationID, firstQuestion string) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.AutoName", telemetry.SpanAttributes{
		AgentID:        agentID,
		ConversationID: conversationID,
		Operation:      "auto_name",
	})
	defer span.End()

	name := truncateName(firstQuestion)

	client, err := s.clients.ChatClient(ctx, agentID)
	if err == nil {
		summary, err := client.Complete(ctx,
			"Produce a short title (at most six words) for a conversation that starts with the given question. Reply with the title only.",
			firstQuestion, nameSummaryTokens)
		if err == nil {
			if cleaned := truncateName(summary); cleaned != "" {
				name = cleaned
			}
		} else {
			log.Printf("conversation service: naming completion failed, falling back to truncation: %v", err)
		}
	}

	if name == "" {
		return
	}
	if err := s.conversationRepo.Rename(ctx, conversationID, agentID, name); err != nil {
		log.Printf("conversation service: failed to rename conversation %s: %v", conversationID, err)
	}
}

func truncateName(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
	runes := []rune(s)
	if len(runes) <= nameMaxLen {
		return s
	}
	return strings.TrimSpace(string(runes[:nameMaxLen])) + "..."
}
