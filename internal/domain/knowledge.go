package domain

import "time"

// KnowledgeSourceType identifies where a knowledge source originates from.
type KnowledgeSourceType string

const (
	SourceTypeFile     KnowledgeSourceType = "FILE"
	SourceTypeURL      KnowledgeSourceType = "URL"
	SourceTypeDatabase KnowledgeSourceType = "DATABASE"
	SourceTypeManual   KnowledgeSourceType = "MANUAL"
)

// KnowledgeSource is a named container of chunks owned by exactly one agent.
type KnowledgeSource struct {
	ID         string
	AgentID    string
	Name       string
	SourceType KnowledgeSourceType
	SourceURI  string
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateKnowledgeSource checks required fields and the source type.
func ValidateKnowledgeSource(k *KnowledgeSource) error {
	if k.AgentID == "" || k.Name == "" {
		return ErrMissingRequiredField
	}
	if !IsValidSourceType(k.SourceType) {
		return ErrInvalidSourceType
	}
	return nil
}

// IsValidSourceType reports whether t is one of the known source types.
func IsValidSourceType(t KnowledgeSourceType) bool {
	switch t {
	case SourceTypeFile, SourceTypeURL, SourceTypeDatabase, SourceTypeManual:
		return true
	}
	return false
}
