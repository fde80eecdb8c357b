// Package retriever expands a requirements document into multiple
// queries, searches the vector store in parallel, and merges the
// results into a single ranked context set.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"brdagent/internal/brd"
	"brdagent/internal/embedder"
	"brdagent/internal/store"
)

// Options tune the retrieval pass.
type Options struct {
	// Enabled gates the whole pass; when false Retrieve returns an
	// empty result immediately.
	Enabled bool
	// TopK is the size of the final merged result set.
	TopK int
	// TopKPerQuery is how many chunks each individual query fetches.
	TopKPerQuery int
	// MaxQueries caps the expanded query list.
	MaxQueries int
	// Concurrency bounds the number of simultaneous vector searches.
	Concurrency int
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Enabled:      true,
		TopK:         10,
		TopKPerQuery: 5,
		MaxQueries:   20,
		Concurrency:  4,
	}
}

// QueryRefiner rewrites generic queries into sharper ones. Optional;
// failures must degrade to the input.
type QueryRefiner interface {
	RefineQueries(ctx context.Context, queries []string) []string
}

// RetrievedChunk is one merged result with provenance of every query
// that surfaced it.
type RetrievedChunk struct {
	ChunkID    int64
	Path       string
	ChunkIndex int
	Kind       string
	Name       string
	StartLine  int
	EndLine    int
	Content    string
	Score      float64
	Sources    []string
}

// Stats summarize one retrieval pass.
type Stats struct {
	RequestID     string
	QueriesIssued int
	QueriesFailed int
	ChunkCount    int
	FileCount     int
	// ModelMismatch is set when the collection was embedded with a
	// different model than the one currently configured.
	ModelMismatch bool
}

// Result is the merged, ranked context set for a document.
type Result struct {
	Chunks []RetrievedChunk
	Stats  Stats
}

// Retriever runs the query-expansion retrieval pass.
type Retriever struct {
	store   store.Store
	embed   embedder.Embedder
	refiner QueryRefiner
	opts    Options
}

// New creates a retriever. refiner may be nil.
func New(s store.Store, e embedder.Embedder, refiner QueryRefiner, opts Options) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.TopKPerQuery <= 0 {
		opts.TopKPerQuery = DefaultOptions().TopKPerQuery
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	return &Retriever{store: s, embed: e, refiner: refiner, opts: opts}
}

// Retrieve expands doc into queries against the repository's collection
// and returns the merged top results. Missing collections and an
// unreachable embedding backend degrade to an empty result rather than
// an error; the stats record what happened.
func (r *Retriever) Retrieve(ctx context.Context, repo string, doc *brd.ParsedBRD) (*Result, error) {
	result := &Result{Stats: Stats{RequestID: uuid.NewString()}}

	if !r.opts.Enabled {
		return result, nil
	}

	name, err := store.NormalizeRepoID(repo)
	if err != nil {
		return nil, fmt.Errorf("normalize repository: %w", err)
	}

	col, err := r.store.GetCollection(ctx, name)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	if col.EmbeddingModel != "" && col.EmbeddingModel != r.embed.Model() {
		result.Stats.ModelMismatch = true
	}

	queries := BuildQueries(doc, r.opts.MaxQueries)
	if r.refiner != nil {
		refineGeneral(ctx, r.refiner, queries)
	}
	result.Stats.QueriesIssued = len(queries)
	if len(queries) == 0 {
		return result, nil
	}

	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Text
	}
	embeddings, err := r.embed.Embed(ctx, texts)
	if err != nil {
		// An unreachable backend and a caller timeout both degrade to an
		// empty result; retrieval is optional context, never a blocker.
		if errors.Is(err, embedder.ErrUnavailable) ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			result.Stats.QueriesFailed = len(queries)
			return result, nil
		}
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	merged := r.searchAll(ctx, col.ID, queries, embeddings, &result.Stats)

	chunks := make([]RetrievedChunk, 0, len(merged))
	for _, c := range merged {
		chunks = append(chunks, *c)
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		// Newer chunks win ties.
		return chunks[i].ChunkID > chunks[j].ChunkID
	})
	if len(chunks) > r.opts.TopK {
		chunks = chunks[:r.opts.TopK]
	}

	files := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		files[c.Path] = true
	}
	result.Chunks = chunks
	result.Stats.ChunkCount = len(chunks)
	result.Stats.FileCount = len(files)
	return result, nil
}

// searchAll runs one vector search per query with bounded concurrency
// and merges results keyed by document path and chunk index. A chunk
// found by several queries keeps its best score and the union of the
// query sources.
func (r *Retriever) searchAll(ctx context.Context, collectionID int64, queries []Query, embeddings [][]float32, stats *Stats) map[string]*RetrievedChunk {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		merged = make(map[string]*RetrievedChunk)
		failed int
		sem    = make(chan struct{}, r.opts.Concurrency)
	)

	for i := range queries {
		wg.Add(1)
		go func(q Query, emb []float32) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			results, err := r.store.Query(ctx, collectionID, emb, r.opts.TopKPerQuery)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for _, res := range results {
				score := 1.0 / (1.0 + res.Distance)
				key := fmt.Sprintf("%s#%d", res.FilePath, res.Chunk.ChunkIndex)
				existing, ok := merged[key]
				if !ok {
					merged[key] = &RetrievedChunk{
						ChunkID:    res.Chunk.ID,
						Path:       res.FilePath,
						ChunkIndex: res.Chunk.ChunkIndex,
						Kind:       res.Chunk.Kind,
						Name:       res.Chunk.Name,
						StartLine:  res.Chunk.StartLine,
						EndLine:    res.Chunk.EndLine,
						Content:    res.Chunk.Content,
						Score:      score,
						Sources:    []string{q.Source},
					}
					continue
				}
				if score > existing.Score {
					existing.Score = score
				}
				if !containsSource(existing.Sources, q.Source) {
					existing.Sources = append(existing.Sources, q.Source)
				}
			}
		}(queries[i], embeddings[i])
	}

	wg.Wait()
	stats.QueriesFailed = failed
	return merged
}

// refineGeneral rewrites only the general probes; objective and
// requirement queries stay verbatim so their provenance holds.
func refineGeneral(ctx context.Context, refiner QueryRefiner, queries []Query) {
	var idx []int
	var texts []string
	for i, q := range queries {
		if q.Source == "general" {
			idx = append(idx, i)
			texts = append(texts, q.Text)
		}
	}
	if len(texts) == 0 {
		return
	}
	refined := refiner.RefineQueries(ctx, texts)
	if len(refined) != len(texts) {
		return
	}
	for i, j := range idx {
		queries[j].Text = refined[i]
	}
}

func containsSource(sources []string, s string) bool {
	for _, have := range sources {
		if have == s {
			return true
		}
	}
	return false
}
