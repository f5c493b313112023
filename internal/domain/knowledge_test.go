package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKnowledgeSource(t *testing.T) {
	valid := &KnowledgeSource{AgentID: "agent-1", Name: "runbooks", SourceType: SourceTypeManual}
	assert.NoError(t, ValidateKnowledgeSource(valid))

	missingAgent := &KnowledgeSource{Name: "runbooks", SourceType: SourceTypeManual}
	assert.ErrorIs(t, ValidateKnowledgeSource(missingAgent), ErrMissingRequiredField)

	missingName := &KnowledgeSource{AgentID: "agent-1", SourceType: SourceTypeManual}
	assert.ErrorIs(t, ValidateKnowledgeSource(missingName), ErrMissingRequiredField)

	badType := &KnowledgeSource{AgentID: "agent-1", Name: "runbooks", SourceType: "CARRIER_PIGEON"}
	assert.ErrorIs(t, ValidateKnowledgeSource(badType), ErrInvalidSourceType)
}

func TestIsValidSourceType(t *testing.T) {
	for _, sourceType := range []KnowledgeSourceType{SourceTypeFile, SourceTypeURL, SourceTypeDatabase, SourceTypeManual} {
		assert.True(t, IsValidSourceType(sourceType))
	}
	assert.False(t, IsValidSourceType("file"))
	assert.False(t, IsValidSourceType(""))
}
