// Package store persists documents, chunks, and embeddings in SQLite,
// partitioned into one collection per repository.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrCollectionNotFound is returned when querying a collection that was
// never ingested.
var ErrCollectionNotFound = errors.New("collection not found")

// Store provides persistence for collections, documents, chunks, and
// embeddings.
type Store interface {
	// EnsureCollection creates the collection if absent and records the
	// embedding model, returning the collection.
	EnsureCollection(ctx context.Context, name, embeddingModel string) (*Collection, error)
	// GetCollection returns a collection by name, or ErrCollectionNotFound.
	GetCollection(ctx context.Context, name string) (*Collection, error)
	// UpsertDocument replaces all chunks and embeddings for the document
	// path inside the collection. chunks and embeddings are parallel.
	UpsertDocument(ctx context.Context, collectionID int64, path string, chunks []Chunk, embeddings [][]float32) error
	// Query finds the top-k chunks in a collection closest to the query
	// embedding, nearest first.
	Query(ctx context.Context, collectionID int64, queryEmbedding []float32, k int) ([]SearchResult, error)
	// DeleteDocument removes a document and returns how many chunks it held.
	DeleteDocument(ctx context.Context, collectionID int64, path string) (int, error)
	// DeleteCollection removes a collection and everything under it.
	// Returns false if the collection did not exist.
	DeleteCollection(ctx context.Context, name string) (bool, error)
	// DeleteCollectionData wipes a collection's documents and vectors
	// but keeps the collection row, for re-ingestion after a model change.
	DeleteCollectionData(ctx context.Context, collectionID int64) error
	// SetCollectionModel updates the recorded embedding model.
	SetCollectionModel(ctx context.Context, collectionID int64, model string) error
	// ListCollections returns all collections with document and chunk counts.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	// CountChunks returns the chunk count for a collection.
	CountChunks(ctx context.Context, collectionID int64) (int, error)
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and
// initializes the schema with the given embedding dimension.
func Open(dbPath string, dimension int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db, dimension); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureCollection(ctx context.Context, name, embeddingModel string) (*Collection, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name, embedding_model) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, embeddingModel,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return s.GetCollection(ctx, name)
}

func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var c Collection
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, embedding_model, created_at FROM collections WHERE name = ?", name,
	).Scan(&c.ID, &c.Name, &c.EmbeddingModel, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("collection %s: %w", name, ErrCollectionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, collectionID int64, path string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("mismatched chunks (%d) and embeddings (%d)", len(chunks), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var docID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE collection_id = ? AND path = ?", collectionID, path,
	).Scan(&docID)
	switch {
	case err == nil:
		// Document exists, drop old chunks and embeddings first.
		if err := deleteDocVectors(ctx, tx, docID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", docID); err != nil {
			return err
		}
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			"INSERT INTO documents (collection_id, path) VALUES (?, ?)", collectionID, path)
		if err != nil {
			return err
		}
		if docID, err = res.LastInsertId(); err != nil {
			return err
		}
	default:
		return err
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (document_id, chunk_index, kind, name, start_line, end_line, content) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO vec_chunks (chunk_id, collection_id, embedding) VALUES (?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i, c := range chunks {
		res, err := chunkStmt.ExecContext(ctx, docID, c.ChunkIndex, c.Kind, c.Name, c.StartLine, c.EndLine, c.Content)
		if err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", c.ChunkIndex, path, err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", chunkID, err)
		}
		if _, err := vecStmt.ExecContext(ctx, chunkID, collectionID, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", chunkID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, collectionID int64, queryEmbedding []float32, k int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	// vec0 KNN queries require the k constraint inside MATCH's WHERE
	// clause; a plain LIMIT is rejected.
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance, c.chunk_index, c.kind, c.name, c.start_line, c.end_line, c.content,
		       d.path
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE v.embedding MATCH ? AND v.collection_id = ? AND k = ?
		ORDER BY v.distance
	`, blob, collectionID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(
			&r.Chunk.ID, &r.Distance,
			&r.Chunk.ChunkIndex, &r.Chunk.Kind, &r.Chunk.Name,
			&r.Chunk.StartLine, &r.Chunk.EndLine, &r.Chunk.Content,
			&r.FilePath,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, collectionID int64, path string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var docID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE collection_id = ? AND path = ?", collectionID, path,
	).Scan(&docID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = ?", docID).Scan(&count); err != nil {
		return 0, err
	}

	if err := deleteDocVectors(ctx, tx, docID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", docID); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) (bool, error) {
	col, err := s.GetCollection(ctx, name)
	if errors.Is(err, ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE collection_id = ?", col.ID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", col.ID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *SQLiteStore) DeleteCollectionData(ctx context.Context, collectionID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE collection_id = ?", collectionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection_id = ?", collectionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetCollectionModel(ctx context.Context, collectionID int64, model string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE collections SET embedding_model = ? WHERE id = ?", model, collectionID)
	return err
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT col.id, col.name, col.embedding_model, col.created_at,
		       COUNT(DISTINCT d.id), COUNT(c.id)
		FROM collections col
		LEFT JOIN documents d ON d.collection_id = col.id
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY col.id
		ORDER BY col.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		err := rows.Scan(
			&info.ID, &info.Name, &info.EmbeddingModel, &info.CreatedAt,
			&info.DocumentCount, &info.ChunkCount,
		)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *SQLiteStore) CountChunks(ctx context.Context, collectionID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.collection_id = ?
	`, collectionID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// deleteDocVectors removes the vec_chunks rows for a document's chunks.
// vec0 tables don't participate in foreign keys, so this is explicit.
func deleteDocVectors(ctx context.Context, tx *sql.Tx, docID int64) error {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE document_id = ?", docID)
	if err != nil {
		return err
	}
	var chunkIDs []int64
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, cid := range chunkIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", cid); err != nil {
			return err
		}
	}
	return nil
}
