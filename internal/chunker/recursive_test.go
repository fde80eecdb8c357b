package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveLoader_RespectsSizeCeiling(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)

	loader := NewRecursiveLoader(500, 100)
	chunks, err := loader.Chunk("a.txt", text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 500)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}

func TestRecursiveLoader_PrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("x", 400)
	text := para + "\n\n" + para + "\n\n" + para

	loader := NewRecursiveLoader(700, 0)
	chunks, err := loader.Chunk("a.txt", text)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	// First chunk ends at the paragraph boundary rather than the hard cut.
	assert.Equal(t, para, chunks[0].Text)
}

func TestRecursiveLoader_OverlapCarriesText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50) // 500 chars, no break points

	loader := NewRecursiveLoader(200, 50)
	chunks, err := loader.Chunk("a.txt", text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// The tail of each chunk reappears at the head of the next.
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].Text[len(chunks[i-1].Text)-50:]
		assert.True(t, strings.HasPrefix(chunks[i].Text, prevTail))
	}
}

func TestRecursiveLoader_ShortTextSingleChunk(t *testing.T) {
	loader := NewRecursiveLoader(0, 0)
	chunks, err := loader.Chunk("a.txt", "short text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestRecursiveLoader_EmptyInput(t *testing.T) {
	loader := NewRecursiveLoader(0, 0)
	chunks, err := loader.Chunk("a.txt", "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRecursiveLoader_LineNumbers(t *testing.T) {
	text := "line one\nline two\nline three"
	loader := NewRecursiveLoader(0, 0)
	chunks, err := loader.Chunk("a.txt", text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}
