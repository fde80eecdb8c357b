package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brdagent/internal/chunker"
	"brdagent/internal/chunker/languages"
)

func newCodeLoader(t *testing.T) *chunker.CodeLoader {
	t.Helper()
	reg := chunker.NewRegistry()
	languages.RegisterAll(reg)
	return chunker.NewCodeLoader(reg)
}

func TestCodeLoader_GoDeclarations(t *testing.T) {
	src := strings.Join([]string{
		"package demo",
		"",
		"// Add returns the sum of a and b.",
		"func Add(a, b int) int {",
		"\treturn a + b",
		"}",
		"",
		"type Counter struct {",
		"\tn int",
		"}",
		"",
		"func (c *Counter) Incr() {",
		"\tc.n++",
		"}",
	}, "\n")

	loader := newCodeLoader(t)
	chunks, err := loader.Chunk("demo.go", src)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Add", chunks[0].Name)
	assert.Equal(t, "Counter", chunks[1].Name)
	assert.Equal(t, "Incr", chunks[2].Name)

	// Doc comment travels with its declaration.
	assert.Contains(t, chunks[0].Text, "// Add returns the sum")
	assert.Equal(t, 3, chunks[0].StartLine)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, chunker.TypeCode, c.Type)
	}
}

func TestCodeLoader_PythonDefinitions(t *testing.T) {
	src := strings.Join([]string{
		"# module helpers",
		"",
		"# greet builds a greeting",
		"def greet(name):",
		"    return 'hi ' + name",
		"",
		"class Widget:",
		"    def render(self):",
		"        return '<div/>'",
	}, "\n")

	loader := newCodeLoader(t)
	chunks, err := loader.Chunk("app.py", src)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, "greet", chunks[0].Name)
	assert.Contains(t, chunks[0].Text, "# greet builds a greeting")
	assert.Equal(t, "Widget", chunks[1].Name)
}

func TestCodeLoader_NestedCapturesDeduped(t *testing.T) {
	// A method inside a class must not also appear as a separate chunk.
	src := strings.Join([]string{
		"class Box:",
		"    def open(self):",
		"        pass",
		"",
		"    def close(self):",
		"        pass",
	}, "\n")

	loader := newCodeLoader(t)
	chunks, err := loader.Chunk("box.py", src)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Box", chunks[0].Name)
	assert.Contains(t, chunks[0].Text, "def open")
	assert.Contains(t, chunks[0].Text, "def close")
}

func TestCodeLoader_UnsupportedExtension(t *testing.T) {
	loader := newCodeLoader(t)
	chunks, err := loader.Chunk("data.csv", "a,b,c\n1,2,3\n")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDispatcher_RoutesByExtension(t *testing.T) {
	reg := chunker.NewRegistry()
	languages.RegisterAll(reg)
	d := chunker.NewDispatcher(reg)

	md, err := d.Chunk("README.md", "# Title\nbody\n")
	require.NoError(t, err)
	require.Len(t, md, 1)
	assert.Equal(t, chunker.TypeMarkdown, md[0].Type)

	code, err := d.Chunk("main.go", "package main\n\nfunc main() {}\n")
	require.NoError(t, err)
	require.Len(t, code, 1)
	assert.Equal(t, chunker.TypeCode, code[0].Type)

	txt, err := d.Chunk("notes.txt", "plain text file\n")
	require.NoError(t, err)
	require.Len(t, txt, 1)
	assert.Equal(t, chunker.TypeGeneric, txt[0].Type)
}
