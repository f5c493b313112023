package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_SetEmbedding(t *testing.T) {
	t.Run("routes 768 to its column", func(t *testing.T) {
		c := &Chunk{Embedding1536: make([]float32, Dimension1536)}
		ok := c.SetEmbedding(make([]float32, Dimension768))
		assert.True(t, ok)
		assert.Len(t, c.Embedding768, Dimension768)
		assert.Nil(t, c.Embedding1536)
	})

	t.Run("routes 1536 to its column", func(t *testing.T) {
		c := &Chunk{Embedding768: make([]float32, Dimension768)}
		ok := c.SetEmbedding(make([]float32, Dimension1536))
		assert.True(t, ok)
		assert.Len(t, c.Embedding1536, Dimension1536)
		assert.Nil(t, c.Embedding768)
	})

	t.Run("unsupported dimension clears both", func(t *testing.T) {
		c := &Chunk{Embedding768: make([]float32, Dimension768)}
		ok := c.SetEmbedding(make([]float32, 42))
		assert.False(t, ok)
		assert.Nil(t, c.Embedding768)
		assert.Nil(t, c.Embedding1536)
	})
}

func TestChunk_Embedding(t *testing.T) {
	c := &Chunk{}
	vec, dim := c.Embedding()
	assert.Nil(t, vec)
	assert.Equal(t, 0, dim)

	c.SetEmbedding(make([]float32, Dimension768))
	vec, dim = c.Embedding()
	assert.Len(t, vec, Dimension768)
	assert.Equal(t, Dimension768, dim)

	c.SetEmbedding(make([]float32, Dimension1536))
	vec, dim = c.Embedding()
	assert.Len(t, vec, Dimension1536)
	assert.Equal(t, Dimension1536, dim)
}
