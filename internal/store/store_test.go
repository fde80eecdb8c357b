package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func vec(a, b, c, d float32) []float32 { return []float32{a, b, c, d} }

func TestEnsureCollection_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureCollection(ctx, "octocat_hello-world", "nomic-embed-text")
	require.NoError(t, err)

	second, err := s.EnsureCollection(ctx, "octocat_hello-world", "nomic-embed-text")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "nomic-embed-text", second.EmbeddingModel)
}

func TestGetCollection_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetCollection(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestUpsertDocument_ReplacesChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	col, err := s.EnsureCollection(ctx, "c", "m")
	require.NoError(t, err)

	chunks := []Chunk{
		{ChunkIndex: 0, Kind: "markdown-section", Name: "Intro", StartLine: 1, EndLine: 3, Content: "intro"},
		{ChunkIndex: 1, Kind: "markdown-section", Name: "Usage", StartLine: 4, EndLine: 9, Content: "usage"},
	}
	embeds := [][]float32{vec(1, 0, 0, 0), vec(0, 1, 0, 0)}
	require.NoError(t, s.UpsertDocument(ctx, col.ID, "README.md", chunks, embeds))

	count, err := s.CountChunks(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-ingest with fewer chunks; old ones must be gone.
	require.NoError(t, s.UpsertDocument(ctx, col.ID, "README.md",
		[]Chunk{{ChunkIndex: 0, Kind: "markdown-section", Name: "All", StartLine: 1, EndLine: 9, Content: "all"}},
		[][]float32{vec(0, 0, 1, 0)},
	))

	count, err = s.CountChunks(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := s.Query(ctx, col.ID, vec(0, 0, 1, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "All", results[0].Chunk.Name)
	assert.Equal(t, "README.md", results[0].FilePath)
}

func TestQuery_NearestFirstAndScopedToCollection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.EnsureCollection(ctx, "repo_a", "m")
	require.NoError(t, err)
	b, err := s.EnsureCollection(ctx, "repo_b", "m")
	require.NoError(t, err)

	require.NoError(t, s.UpsertDocument(ctx, a.ID, "a.md",
		[]Chunk{
			{ChunkIndex: 0, Content: "close", StartLine: 1, EndLine: 1},
			{ChunkIndex: 1, Content: "far", StartLine: 2, EndLine: 2},
		},
		[][]float32{vec(1, 0, 0, 0), vec(0, 0, 0, 1)},
	))
	require.NoError(t, s.UpsertDocument(ctx, b.ID, "b.md",
		[]Chunk{{ChunkIndex: 0, Content: "other repo", StartLine: 1, EndLine: 1}},
		[][]float32{vec(1, 0, 0, 0)},
	))

	results, err := s.Query(ctx, a.ID, vec(1, 0, 0, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].Chunk.Content)
	assert.Less(t, results[0].Distance, results[1].Distance)

	for _, r := range results {
		assert.NotEqual(t, "other repo", r.Chunk.Content)
	}
}

func TestQuery_HonorsK(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	col, err := s.EnsureCollection(ctx, "c", "m")
	require.NoError(t, err)

	chunks := make([]Chunk, 5)
	embeds := make([][]float32, 5)
	for i := range chunks {
		chunks[i] = Chunk{ChunkIndex: i, Content: "c", StartLine: i + 1, EndLine: i + 1}
		// Progressively further from the query vector.
		embeds[i] = vec(1, float32(i)*0.2, 0, 0)
	}
	require.NoError(t, s.UpsertDocument(ctx, col.ID, "doc.md", chunks, embeds))

	results, err := s.Query(ctx, col.ID, vec(1, 0, 0, 0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.Equal(t, 1, results[1].Chunk.ChunkIndex)
	assert.Equal(t, 2, results[2].Chunk.ChunkIndex)
}

func TestDeleteDocument_ReturnsChunkCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	col, err := s.EnsureCollection(ctx, "c", "m")
	require.NoError(t, err)
	require.NoError(t, s.UpsertDocument(ctx, col.ID, "doc.md",
		[]Chunk{
			{ChunkIndex: 0, Content: "x", StartLine: 1, EndLine: 1},
			{ChunkIndex: 1, Content: "y", StartLine: 2, EndLine: 2},
		},
		[][]float32{vec(1, 0, 0, 0), vec(0, 1, 0, 0)},
	))

	n, err := s.DeleteDocument(ctx, col.ID, "doc.md")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Deleting again is a no-op.
	n, err = s.DeleteDocument(ctx, col.ID, "doc.md")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	results, err := s.Query(ctx, col.ID, vec(1, 0, 0, 0), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteCollection_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	col, err := s.EnsureCollection(ctx, "c", "m")
	require.NoError(t, err)
	require.NoError(t, s.UpsertDocument(ctx, col.ID, "doc.md",
		[]Chunk{{ChunkIndex: 0, Content: "x", StartLine: 1, EndLine: 1}},
		[][]float32{vec(1, 0, 0, 0)},
	))

	deleted, err := s.DeleteCollection(ctx, "c")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteCollection(ctx, "c")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.GetCollection(ctx, "c")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestDeleteCollectionData_KeepsCollectionRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	col, err := s.EnsureCollection(ctx, "c", "old-model")
	require.NoError(t, err)
	require.NoError(t, s.UpsertDocument(ctx, col.ID, "doc.md",
		[]Chunk{{ChunkIndex: 0, Content: "x", StartLine: 1, EndLine: 1}},
		[][]float32{vec(1, 0, 0, 0)},
	))

	require.NoError(t, s.DeleteCollectionData(ctx, col.ID))
	require.NoError(t, s.SetCollectionModel(ctx, col.ID, "new-model"))

	got, err := s.GetCollection(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "new-model", got.EmbeddingModel)

	count, err := s.CountChunks(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListCollections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.EnsureCollection(ctx, "alpha", "m")
	require.NoError(t, err)
	_, err = s.EnsureCollection(ctx, "beta", "m")
	require.NoError(t, err)

	require.NoError(t, s.UpsertDocument(ctx, a.ID, "one.md",
		[]Chunk{
			{ChunkIndex: 0, Content: "a", StartLine: 1, EndLine: 1},
			{ChunkIndex: 1, Content: "b", StartLine: 2, EndLine: 2},
		},
		[][]float32{vec(1, 0, 0, 0), vec(0, 1, 0, 0)},
	))

	infos, err := s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, 1, infos[0].DocumentCount)
	assert.Equal(t, 2, infos[0].ChunkCount)
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, 0, infos[1].ChunkCount)
}
