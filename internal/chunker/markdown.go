package chunker

import (
	"regexp"
	"strings"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+\S`)

// MarkdownLoader splits markdown on heading boundaries. A chunk is a
// heading plus everything until the next heading of equal or higher
// level; deeper subsections stay inside their parent chunk. A document
// with no headings becomes a single chunk, handed to the recursive
// loader when it exceeds that loader's size ceiling.
type MarkdownLoader struct {
	fallback *RecursiveLoader
}

func NewMarkdownLoader(fallback *RecursiveLoader) *MarkdownLoader {
	return &MarkdownLoader{fallback: fallback}
}

func (l *MarkdownLoader) Chunk(path, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")

	// The split level is the shallowest heading present.
	splitLevel := 0
	for _, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			if lvl := len(m[1]); splitLevel == 0 || lvl < splitLevel {
				splitLevel = lvl
			}
		}
	}

	if splitLevel == 0 {
		// No headings: whole document is one chunk, unless oversized.
		if len(text) > l.fallback.maxSize {
			return l.fallback.Chunk(path, text)
		}
		return reindex([]Chunk{{
			Type:      TypeMarkdown,
			StartLine: 1,
			EndLine:   len(lines),
			Text:      strings.TrimSpace(text),
		}}), nil
	}

	var chunks []Chunk
	start := 0 // current section start (0-based line index)
	flush := func(end int) {
		section := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		if section == "" {
			return // empty sections are dropped
		}
		name := ""
		if m := headingRe.FindStringSubmatch(lines[start]); m != nil {
			name = strings.TrimSpace(strings.TrimLeft(lines[start], "# "))
		}
		chunks = append(chunks, Chunk{
			Type:      TypeMarkdown,
			Name:      name,
			StartLine: start + 1,
			EndLine:   end,
			Text:      section,
		})
	}

	for i, line := range lines {
		m := headingRe.FindStringSubmatch(line)
		if m == nil || len(m[1]) > splitLevel {
			continue
		}
		if i > start {
			flush(i)
		}
		start = i
	}
	flush(len(lines))

	return reindex(chunks), nil
}
