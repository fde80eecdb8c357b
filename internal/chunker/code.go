package chunker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// maxCodeChunkBytes bounds a single code chunk; oversized declarations
// are window-split with a line overlap.
const maxCodeChunkBytes = 8192

// CodeLoader parses source files with tree-sitter and emits one chunk
// per top-level declaration, keeping any immediately preceding comment
// block attached to its declaration.
type CodeLoader struct {
	registry *Registry
}

func NewCodeLoader(r *Registry) *CodeLoader {
	return &CodeLoader{registry: r}
}

func (l *CodeLoader) Chunk(path, text string) ([]Chunk, error) {
	spec, _ := l.registry.Lookup(path)
	if spec == nil {
		return nil, nil
	}
	src := []byte(text)

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", path, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode *sitter.Node
		var nameStr string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				chunkNode = cap.Node
			case "name":
				nameStr = cap.Node.Content(src)
			}
		}
		if chunkNode == nil {
			continue
		}
		captures = append(captures, capture{
			name:      nameStr,
			startLine: int(chunkNode.StartPoint().Row) + 1,
			endLine:   int(chunkNode.EndPoint().Row) + 1,
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	captures = dedupCaptures(captures)

	lines := strings.Split(text, "\n")
	var chunks []Chunk
	for _, cap := range captures {
		startLine := attachLeadingComments(lines, cap.startLine, spec.CommentPrefixes)
		content := joinLines(lines, startLine, cap.endLine)
		if strings.TrimSpace(content) == "" {
			continue
		}

		if len(content) > maxCodeChunkBytes {
			chunks = append(chunks, splitOversized(content, cap.name, startLine)...)
		} else {
			chunks = append(chunks, Chunk{
				Type:      TypeCode,
				Name:      cap.name,
				StartLine: startLine,
				EndLine:   cap.endLine,
				Text:      content,
			})
		}
	}

	return reindex(chunks), nil
}

type capture struct {
	name      string
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}

// dedupCaptures removes captures fully contained within a larger one,
// keeping the outer node.
func dedupCaptures(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	var result []capture
	var lastEnd uint32
	for _, c := range caps {
		if c.startByte >= lastEnd || lastEnd == 0 {
			result = append(result, c)
			if c.endByte > lastEnd {
				lastEnd = c.endByte
			}
		}
	}
	return result
}

// attachLeadingComments walks upward from the declaration and includes
// a directly adjacent comment block, if any. Returns the (possibly
// moved) 1-indexed start line.
func attachLeadingComments(lines []string, startLine int, prefixes []string) int {
	if len(prefixes) == 0 {
		return startLine
	}
	start := startLine
	for start > 1 {
		prev := strings.TrimSpace(lines[start-2])
		if prev == "" {
			break
		}
		matched := false
		for _, p := range prefixes {
			if strings.HasPrefix(prev, p) {
				matched = true
				break
			}
		}
		if !matched {
			break
		}
		start--
	}
	return start
}

// joinLines joins the 1-indexed inclusive line range.
func joinLines(lines []string, startLine, endLine int) string {
	start := startLine - 1
	if start < 0 {
		start = 0
	}
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

// splitOversized windows an oversized declaration into line-based
// pieces with a 10-line overlap.
func splitOversized(content, name string, baseStartLine int) []Chunk {
	lines := strings.Split(content, "\n")
	const windowSize = 40
	const overlap = 10

	var chunks []Chunk
	for i := 0; i < len(lines); {
		end := i + windowSize
		if end > len(lines) {
			end = len(lines)
		}
		piece := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, Chunk{
				Type:      TypeCode,
				Name:      name,
				StartLine: baseStartLine + i,
				EndLine:   baseStartLine + end - 1,
				Text:      piece,
			})
		}
		if end >= len(lines) {
			break
		}
		i += windowSize - overlap
	}
	return chunks
}
