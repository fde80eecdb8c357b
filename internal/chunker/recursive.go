package chunker

import (
	"strings"
)

const (
	// DefaultMaxChunkSize is the character ceiling per generic chunk.
	DefaultMaxChunkSize = 1000
	// DefaultOverlap is the character overlap carried between adjacent chunks.
	DefaultOverlap = 200
)

// RecursiveLoader splits generic text into bounded chunks. It prefers
// paragraph boundaries, then sentence boundaries, then a hard character
// cut, and carries a small overlap across adjacent chunks.
type RecursiveLoader struct {
	maxSize int
	overlap int
}

func NewRecursiveLoader(maxSize, overlap int) *RecursiveLoader {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = maxSize / 5
	}
	return &RecursiveLoader{maxSize: maxSize, overlap: overlap}
}

func (l *RecursiveLoader) Chunk(path, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lineAt := buildLineIndex(text)

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + l.maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = l.breakPoint(text, start, end)
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, Chunk{
				Type:      TypeGeneric,
				StartLine: lineAt(start),
				EndLine:   lineAt(end - 1),
				Text:      piece,
			})
		}

		if end >= len(text) {
			break
		}
		next := end - l.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return reindex(chunks), nil
}

// breakPoint finds the best split position in text[start:end], trying
// paragraph breaks in the second half of the window, then sentence
// breaks in the final third, falling back to the hard ceiling.
func (l *RecursiveLoader) breakPoint(text string, start, end int) int {
	window := text[start:end]

	if i := strings.LastIndex(window, "\n\n"); i > len(window)/2 {
		return start + i + 2
	}

	sentence := -1
	for _, sep := range []string{". ", ".\n", "! ", "!\n", "? ", "?\n"} {
		if i := strings.LastIndex(window, sep); i > sentence {
			sentence = i
		}
	}
	if sentence > len(window)*7/10 {
		return start + sentence + 2
	}

	return end
}

// buildLineIndex returns a lookup from byte offset to 1-indexed line.
func buildLineIndex(text string) func(int) int {
	// Offsets of line starts, ascending.
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return func(off int) int {
		if off < 0 {
			return 1
		}
		lo, hi := 0, len(starts)-1
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if starts[mid] <= off {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		return lo + 1
	}
}
