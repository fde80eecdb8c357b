package ingest

import (
	"context"
	"fmt"
	"sync"

	"brdagent/internal/chunker"
	"brdagent/internal/github"
	"brdagent/internal/store"
)

const embedBatchSize = 32

// chunkBatch is one fetched and chunked file, ready to embed.
type chunkBatch struct {
	path   string
	chunks []chunker.Chunk
}

// runPipeline fetches and chunks plan files with s.workers goroutines,
// then embeds and stores them serially. Failures are appended to
// stats.Errors and the file is skipped.
func (s *Service) runPipeline(ctx context.Context, collectionID int64, ref github.RepoRef, branch string, plan []PlannedFile, stats *Stats, onProgress ProgressFunc) {
	workCh := make(chan PlannedFile)
	batchCh := make(chan chunkBatch, s.workers)

	var errMu sync.Mutex
	fail := func(path string, err error) {
		errMu.Lock()
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
		errMu.Unlock()
	}

	// Stage 1: fetch + chunk (N workers).
	var fetchWg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		fetchWg.Add(1)
		go func() {
			defer fetchWg.Done()
			for pf := range workCh {
				content, err := s.source.GetFile(ctx, ref, pf.Path, branch)
				if err != nil {
					fail(pf.Path, err)
					continue
				}
				chunks, err := s.chunks.Chunk(pf.Path, content)
				if err != nil {
					fail(pf.Path, err)
					continue
				}
				if len(chunks) == 0 {
					continue
				}
				select {
				case batchCh <- chunkBatch{path: pf.Path, chunks: chunks}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for _, pf := range plan {
			select {
			case workCh <- pf:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		fetchWg.Wait()
		close(batchCh)
	}()

	// Stage 2: embed + store (single worker keeps writes serialized).
	done := 0
	for batch := range batchCh {
		if err := s.embedAndStore(ctx, collectionID, batch.path, batch.chunks); err != nil {
			fail(batch.path, err)
			continue
		}
		stats.FilesProcessed++
		stats.ChunksCreated += len(batch.chunks)
		done++
		if onProgress != nil {
			onProgress("Ingesting files...", done, len(plan))
		}
	}
}

// embedAndStore embeds a file's chunks in sub-batches and replaces the
// document in the store.
func (s *Service) embedAndStore(ctx context.Context, collectionID int64, path string, chunks []chunker.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		embs, err := s.embed.Embed(ctx, texts[i:end])
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		embeddings = append(embeddings, embs...)
	}

	records := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		records[i] = store.Chunk{
			ChunkIndex: c.Index,
			Kind:       string(c.Type),
			Name:       c.Name,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Content:    c.Text,
		}
	}

	if err := s.store.UpsertDocument(ctx, collectionID, path, records, embeddings); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
