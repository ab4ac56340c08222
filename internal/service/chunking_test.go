package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildParagraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Paragraph %d covers the maintenance procedure for the circulation pump, "+
			"including seal inspection, impeller clearance, and bearing lubrication intervals.\n\n", i+1)
	}
	return b.String()
}

func TestChunker_Chunk(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkConfig())
	require.NoError(t, err)

	t.Run("empty text yields no chunks", func(t *testing.T) {
		assert.Nil(t, chunker.Chunk(""))
		assert.Nil(t, chunker.Chunk("   \n\t  "))
	})

	t.Run("short text stays one chunk", func(t *testing.T) {
		chunks := chunker.Chunk("  a short note about pump seals  ")
		require.Len(t, chunks, 1)
		assert.Equal(t, "a short note about pump seals", chunks[0])
	})

	t.Run("long text splits into bounded chunks", func(t *testing.T) {
		text := buildParagraphs(60)
		chunks := chunker.Chunk(text)
		require.Greater(t, len(chunks), 1)

		for _, chunk := range chunks {
			assert.NotEmpty(t, strings.TrimSpace(chunk))
			assert.LessOrEqual(t, chunker.countTokens(chunk), chunker.cfg.SizeTokens)
		}
	})

	t.Run("every paragraph survives splitting", func(t *testing.T) {
		text := buildParagraphs(60)
		chunks := chunker.Chunk(text)
		joined := strings.Join(chunks, "\n\n")
		for i := 1; i <= 60; i++ {
			assert.Contains(t, joined, fmt.Sprintf("Paragraph %d covers", i))
		}
	})

	t.Run("text without separators falls back to token windows", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 500)
		chunks := chunker.Chunk(text)
		require.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, chunker.countTokens(chunk), chunker.cfg.SizeTokens)
		}
	})
}

func TestChunker_MinTokenFallback(t *testing.T) {
	// A minimum above the chunk size drops every split piece; the whole text
	// must come back as a single chunk instead of vanishing.
	chunker, err := NewChunker(ChunkConfig{SizeTokens: 16, OverlapTokens: 2, MinTokens: 64})
	require.NoError(t, err)

	text := "one two three\n\nfour five six\n\nseven eight nine ten eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen"
	chunks := chunker.Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(text), chunks[0])
}

func TestChunker_Overlap(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{SizeTokens: 32, OverlapTokens: 8, MinTokens: 0})
	require.NoError(t, err)

	var words []string
	for i := 0; i < 200; i++ {
		words = append(words, fmt.Sprintf("w%03d", i))
	}
	chunks := chunker.Chunk(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	// Consecutive chunks share their boundary words.
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		lastWord := prevWords[len(prevWords)-1]
		assert.Contains(t, chunks[i], lastWord)
	}
}

func TestNewChunker_ConfigNormalization(t *testing.T) {
	t.Run("zero size falls back to defaults", func(t *testing.T) {
		chunker, err := NewChunker(ChunkConfig{})
		require.NoError(t, err)
		assert.Equal(t, DefaultChunkConfig().SizeTokens, chunker.cfg.SizeTokens)
	})

	t.Run("overlap at or above size is reduced", func(t *testing.T) {
		chunker, err := NewChunker(ChunkConfig{SizeTokens: 100, OverlapTokens: 100})
		require.NoError(t, err)
		assert.Equal(t, 25, chunker.cfg.OverlapTokens)
	})
}
