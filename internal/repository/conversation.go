package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agentkb/agentkb/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, agent_id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.AgentID, c.Name, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetForAgent fetches a conversation only if it belongs to the agent.
func (r *ConversationRepository) GetForAgent(ctx context.Context, id, agentID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, agent_id, name, created_at, updated_at
		 FROM conversations WHERE id = $1 AND agent_id = $2`,
		id, agentID,
	).Scan(&c.ID, &c.AgentID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) ListByAgent(ctx context.Context, agentID string) ([]*domain.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, agent_id, name, created_at, updated_at
		 FROM conversations WHERE agent_id = $1 ORDER BY updated_at DESC`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.AgentID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, &c)
	}
	return conversations, rows.Err()
}

func (r *ConversationRepository) Rename(ctx context.Context, id, agentID, name string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE conversations SET name = $1, updated_at = $2 WHERE id = $3 AND agent_id = $4`,
		name, time.Now().UTC(), id, agentID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *ConversationRepository) Delete(ctx context.Context, id, agentID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND agent_id = $2`,
		id, agentID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, conversation_id, agent_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ConversationID, m.AgentID, m.Role, m.Content, m.CreatedAt,
	)
	return err
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, agent_id, role, content, created_at
		 FROM chat_messages WHERE conversation_id = $1 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AgentID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// CountByConversation reports how many messages a conversation holds, used to
// decide when to auto-name a fresh conversation.
func (r *MessageRepository) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE conversation_id = $1`,
		conversationID,
	).Scan(&n)
	return n, err
}
