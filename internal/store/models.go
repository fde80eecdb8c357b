package store

import "time"

// Collection is a per-repository vector index namespace.
type Collection struct {
	ID             int64
	Name           string
	EmbeddingModel string
	CreatedAt      time.Time
}

// CollectionInfo is a Collection plus aggregate counts, for listings.
type CollectionInfo struct {
	Collection
	DocumentCount int
	ChunkCount    int
}

// Document represents an ingested file within a collection.
type Document struct {
	ID           int64
	CollectionID int64
	Path         string
	UpdatedAt    time.Time
}

// Chunk represents one retrievable unit of a document.
type Chunk struct {
	ID         int64
	DocumentID int64
	ChunkIndex int
	Kind       string
	Name       string
	StartLine  int
	EndLine    int
	Content    string
}

// SearchResult is a chunk with its similarity distance and source path.
type SearchResult struct {
	Chunk    Chunk
	FilePath string
	Distance float64
}
