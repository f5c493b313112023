package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAgent() *Agent {
	return &Agent{
		Name:               "support-bot",
		ProviderName:       "openai",
		ChatModel:          "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: Dimension768,
		APIKey:             "sk-test",
	}
}

func TestValidateAgent(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateAgent(validAgent()))
	})

	t.Run("provider name is case insensitive", func(t *testing.T) {
		a := validAgent()
		a.ProviderName = "OpenAI"
		assert.NoError(t, ValidateAgent(a))

		a.ProviderName = "AZURE"
		assert.NoError(t, ValidateAgent(a))
	})

	t.Run("missing required fields", func(t *testing.T) {
		for _, mutate := range []func(*Agent){
			func(a *Agent) { a.Name = "" },
			func(a *Agent) { a.ProviderName = "" },
			func(a *Agent) { a.ChatModel = "" },
			func(a *Agent) { a.EmbeddingModel = "" },
			func(a *Agent) { a.APIKey = "" },
		} {
			a := validAgent()
			mutate(a)
			assert.ErrorIs(t, ValidateAgent(a), ErrMissingRequiredField)
		}
	})

	t.Run("unsupported dimension", func(t *testing.T) {
		a := validAgent()
		a.EmbeddingDimension = 512
		assert.ErrorIs(t, ValidateAgent(a), ErrUnsupportedDimension)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		a := validAgent()
		a.ProviderName = "anthropic"
		assert.ErrorIs(t, ValidateAgent(a), ErrUnsupportedProvider)
	})
}

func TestSupportedDimension(t *testing.T) {
	assert.True(t, SupportedDimension(Dimension768))
	assert.True(t, SupportedDimension(Dimension1536))
	assert.False(t, SupportedDimension(0))
	assert.False(t, SupportedDimension(1024))
}
