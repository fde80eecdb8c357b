// Package ingest pulls repository content from GitHub, chunks it, and
// loads it into the vector store, one collection per repository.
package ingest

import (
	"context"
	"fmt"

	"brdagent/internal/chunker"
	"brdagent/internal/embedder"
	"brdagent/internal/github"
	"brdagent/internal/store"
)

// ContentSource fetches repository trees and file contents.
type ContentSource interface {
	DefaultBranch(ctx context.Context, repo github.RepoRef) (string, error)
	ListTree(ctx context.Context, repo github.RepoRef, ref string) ([]github.TreeEntry, error)
	GetFile(ctx context.Context, repo github.RepoRef, path, ref string) (string, error)
}

// ProgressFunc reports pipeline progress to the caller.
type ProgressFunc func(stage string, done, total int)

// Stats reports the outcome of an ingestion run. A run with Errors is
// still a partial success; everything processed stays stored.
type Stats struct {
	FilesPlanned   int
	FilesProcessed int
	ChunksCreated  int
	Errors         []string
}

// RepoStatus describes a collection for status queries.
type RepoStatus struct {
	Exists         bool
	Collection     string
	EmbeddingModel string
	DocumentCount  int
	ChunkCount     int
}

// Service is the ingestion facade used by the CLI and MCP surfaces.
type Service struct {
	store   store.Store
	source  ContentSource
	chunks  *chunker.Dispatcher
	embed   embedder.Embedder
	workers int
}

// NewService wires an ingestion service.
func NewService(s store.Store, source ContentSource, dispatcher *chunker.Dispatcher, emb embedder.Embedder, workers int) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{store: s, source: source, chunks: dispatcher, embed: emb, workers: workers}
}

// IngestRepository ingests a repository's documentation and code into
// its collection. A non-empty pathFilter restricts ingestion to paths
// under that prefix. Per-file failures are recorded and skipped; the
// run only fails outright when the repository itself is unreachable.
func (s *Service) IngestRepository(ctx context.Context, repo, pathFilter string, onProgress ProgressFunc) (*Stats, error) {
	ref, err := github.ParseRepoURL(repo)
	if err != nil {
		return nil, err
	}
	col, err := s.prepareCollection(ctx, repo)
	if err != nil {
		return nil, err
	}

	branch, err := s.source.DefaultBranch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve default branch of %s: %w", ref, err)
	}
	entries, err := s.source.ListTree(ctx, ref, branch)
	if err != nil {
		return nil, fmt.Errorf("list tree of %s: %w", ref, err)
	}

	plan := BuildPlan(entries)
	if pathFilter != "" {
		plan = filterPlan(plan, pathFilter)
	}
	stats := &Stats{FilesPlanned: len(plan)}
	if len(plan) == 0 {
		return stats, nil
	}

	s.runPipeline(ctx, col.ID, ref, branch, plan, stats, onProgress)
	return stats, nil
}

// IngestDocument ingests a single document. When content is empty it is
// fetched from the repository's default branch.
func (s *Service) IngestDocument(ctx context.Context, repo, path, content string) (int, error) {
	ref, err := github.ParseRepoURL(repo)
	if err != nil {
		return 0, err
	}
	col, err := s.prepareCollection(ctx, repo)
	if err != nil {
		return 0, err
	}

	if content == "" {
		branch, err := s.source.DefaultBranch(ctx, ref)
		if err != nil {
			return 0, fmt.Errorf("resolve default branch of %s: %w", ref, err)
		}
		content, err = s.source.GetFile(ctx, ref, path, branch)
		if err != nil {
			return 0, fmt.Errorf("fetch %s: %w", path, err)
		}
	}

	chunks, err := s.chunks.Chunk(path, content)
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", path, err)
	}
	if len(chunks) == 0 {
		// Nothing chunkable; drop any stale version of the document.
		if _, err := s.store.DeleteDocument(ctx, col.ID, path); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if err := s.embedAndStore(ctx, col.ID, path, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Status reports whether a repository has been ingested and how much it holds.
func (s *Service) Status(ctx context.Context, repo string) (*RepoStatus, error) {
	name, err := store.NormalizeRepoID(repo)
	if err != nil {
		return nil, err
	}
	infos, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Name == name {
			return &RepoStatus{
				Exists:         true,
				Collection:     info.Name,
				EmbeddingModel: info.EmbeddingModel,
				DocumentCount:  info.DocumentCount,
				ChunkCount:     info.ChunkCount,
			}, nil
		}
	}
	return &RepoStatus{Collection: name}, nil
}

// List returns every ingested collection.
func (s *Service) List(ctx context.Context) ([]store.CollectionInfo, error) {
	return s.store.ListCollections(ctx)
}

// DeleteDocument removes one document from a repository's collection
// and returns how many chunks were dropped.
func (s *Service) DeleteDocument(ctx context.Context, repo, path string) (int, error) {
	name, err := store.NormalizeRepoID(repo)
	if err != nil {
		return 0, err
	}
	col, err := s.store.GetCollection(ctx, name)
	if err != nil {
		return 0, err
	}
	return s.store.DeleteDocument(ctx, col.ID, path)
}

// DeleteRepository removes a repository's collection entirely. Deleting
// a collection that does not exist is not an error.
func (s *Service) DeleteRepository(ctx context.Context, repo string) (bool, error) {
	name, err := store.NormalizeRepoID(repo)
	if err != nil {
		return false, err
	}
	return s.store.DeleteCollection(ctx, name)
}

// prepareCollection ensures the collection exists and wipes its data
// when the embedding model changed since the last ingestion.
func (s *Service) prepareCollection(ctx context.Context, repo string) (*store.Collection, error) {
	name, err := store.NormalizeRepoID(repo)
	if err != nil {
		return nil, err
	}
	col, err := s.store.EnsureCollection(ctx, name, s.embed.Model())
	if err != nil {
		return nil, err
	}
	if col.EmbeddingModel != "" && col.EmbeddingModel != s.embed.Model() {
		if err := s.store.DeleteCollectionData(ctx, col.ID); err != nil {
			return nil, fmt.Errorf("wipe collection after model change: %w", err)
		}
		if err := s.store.SetCollectionModel(ctx, col.ID, s.embed.Model()); err != nil {
			return nil, err
		}
		col.EmbeddingModel = s.embed.Model()
	}
	return col, nil
}
