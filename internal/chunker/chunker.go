// Package chunker splits raw document text into retrievable units.
// Three strategies exist: header-based for markdown, recursive for
// generic text, and syntax-aware for source code. A Dispatcher picks
// the strategy from the file extension.
package chunker

import (
	"path/filepath"
	"strings"
)

// Type identifies the strategy that produced a chunk.
type Type string

const (
	TypeMarkdown Type = "markdown-section"
	TypeCode     Type = "code-unit"
	TypeGeneric  Type = "generic"
)

// Chunk is a contiguous span of document text with positional metadata.
// Chunks are immutable once created; re-ingesting a file replaces its
// chunks wholesale.
type Chunk struct {
	Index     int
	Type      Type
	Name      string
	StartLine int
	EndLine   int
	Text      string
}

// Loader turns one document's text into chunks.
type Loader interface {
	Chunk(path, text string) ([]Chunk, error)
}

// markdownExts are extensions handled by the header-based strategy.
var markdownExts = map[string]bool{
	"md": true, "markdown": true, "rst": true,
}

// Dispatcher routes a file to the right Loader by extension.
type Dispatcher struct {
	markdown *MarkdownLoader
	generic  *RecursiveLoader
	code     *CodeLoader
	registry *Registry
}

// NewDispatcher builds a dispatcher over the given language registry.
func NewDispatcher(reg *Registry) *Dispatcher {
	rec := NewRecursiveLoader(DefaultMaxChunkSize, DefaultOverlap)
	return &Dispatcher{
		markdown: NewMarkdownLoader(rec),
		generic:  rec,
		code:     NewCodeLoader(reg),
		registry: reg,
	}
}

// ForFile returns the Loader responsible for the given path.
func (d *Dispatcher) ForFile(path string) Loader {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch {
	case markdownExts[ext]:
		return d.markdown
	case d.registry.Supports(path):
		return d.code
	default:
		return d.generic
	}
}

// Chunk dispatches and chunks in one call.
func (d *Dispatcher) Chunk(path, text string) ([]Chunk, error) {
	return d.ForFile(path).Chunk(path, text)
}

// reindex assigns sequential chunk indexes. Loaders call it last so the
// index always reflects final document order, even after splits.
func reindex(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}
