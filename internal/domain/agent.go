package domain

import (
	"strings"
	"time"
)

// Provider names understood by the client factory registry.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Default chat parameters applied when an agent is created without them.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0
	DefaultMaxTokens   = 2048
)

// Agent holds the provider configuration for one AI agent. Every knowledge
// source and chunk in the system belongs to exactly one agent, and the
// agent's configuration decides which provider clients are built for it.
//
// Mutating an agent's configuration MUST be followed by invalidating any
// cached provider clients for it; a stale client after a credential rotation
// is a correctness bug, not a staleness inconvenience.
type Agent struct {
	ID           string
	Name         string
	Description  string
	Instructions string

	ProviderName        string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimension  int
	BaseURL             string
	EmbeddingsPath      string
	ChatCompletionsPath string
	APIKey              string

	IsDefault   bool
	Temperature float64
	TopP        float64
	MaxTokens   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateAgent checks required fields and provider constraints.
func ValidateAgent(a *Agent) error {
	if a.Name == "" || a.ProviderName == "" || a.ChatModel == "" || a.EmbeddingModel == "" {
		return ErrMissingRequiredField
	}
	if a.APIKey == "" {
		return ErrMissingRequiredField
	}
	if !SupportedDimension(a.EmbeddingDimension) {
		return ErrUnsupportedDimension
	}
	switch strings.ToLower(a.ProviderName) {
	case ProviderOpenAI, ProviderAzure:
	default:
		return ErrUnsupportedProvider
	}
	return nil
}
