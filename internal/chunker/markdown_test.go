package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownLoader_SplitsOnTopLevelHeadings(t *testing.T) {
	doc := strings.Join([]string{
		"# Intro",
		"Some intro text.",
		"",
		"# Architecture",
		"Layers and boundaries.",
		"",
		"## Details",
		"Nested content stays with its parent.",
		"",
		"# Deployment",
		"Ship it.",
	}, "\n")

	loader := NewMarkdownLoader(NewRecursiveLoader(0, 0))
	chunks, err := loader.Chunk("README.md", doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Intro", chunks[0].Name)
	assert.Equal(t, "Architecture", chunks[1].Name)
	assert.Equal(t, "Deployment", chunks[2].Name)

	// Subsection lives inside its parent chunk.
	assert.Contains(t, chunks[1].Text, "## Details")
	assert.Contains(t, chunks[1].Text, "Nested content")

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, TypeMarkdown, c.Type)
	}
}

func TestMarkdownLoader_PreambleBeforeFirstHeading(t *testing.T) {
	doc := "Leading prose without a heading.\n\n# First\nbody\n"

	loader := NewMarkdownLoader(NewRecursiveLoader(0, 0))
	chunks, err := loader.Chunk("doc.md", doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "", chunks[0].Name)
	assert.Contains(t, chunks[0].Text, "Leading prose")
	assert.Equal(t, "First", chunks[1].Name)
}

func TestMarkdownLoader_DropsEmptySections(t *testing.T) {
	doc := "# One\ncontent\n\n# Two\n\n\n# Three\nmore\n"

	loader := NewMarkdownLoader(NewRecursiveLoader(0, 0))
	chunks, err := loader.Chunk("doc.md", doc)
	require.NoError(t, err)

	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		names = append(names, c.Name)
	}
	// "# Two" is kept (the heading line itself is content), but a
	// section that trims to nothing would be dropped.
	assert.Equal(t, []string{"One", "Two", "Three"}, names)
}

func TestMarkdownLoader_NoHeadingsSingleChunk(t *testing.T) {
	loader := NewMarkdownLoader(NewRecursiveLoader(0, 0))
	chunks, err := loader.Chunk("notes.md", "just some text\nno headings anywhere\n")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeMarkdown, chunks[0].Type)
}

func TestMarkdownLoader_NoHeadingsOversizedFallsBack(t *testing.T) {
	long := strings.Repeat("word word word. ", 200) // well over 1000 chars
	loader := NewMarkdownLoader(NewRecursiveLoader(0, 0))
	chunks, err := loader.Chunk("notes.md", long)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), DefaultMaxChunkSize)
		assert.Equal(t, TypeGeneric, c.Type)
	}
}

func TestMarkdownLoader_DeeperSplitLevelWhenNoH1(t *testing.T) {
	doc := "## Alpha\na\n\n## Beta\nb\n"
	loader := NewMarkdownLoader(NewRecursiveLoader(0, 0))
	chunks, err := loader.Chunk("doc.md", doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Alpha", chunks[0].Name)
	assert.Equal(t, "Beta", chunks[1].Name)
}

func TestMarkdownLoader_EmptyInput(t *testing.T) {
	loader := NewMarkdownLoader(NewRecursiveLoader(0, 0))
	chunks, err := loader.Chunk("doc.md", "   \n\t\n")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
