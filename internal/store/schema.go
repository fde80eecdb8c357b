package store

import (
	"database/sql"
	"fmt"
)

// DefaultDimension matches nomic-embed-text, the default embedding model.
const DefaultDimension = 768

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS collections (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT NOT NULL UNIQUE,
    embedding_model TEXT NOT NULL DEFAULT '',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
    path          TEXT NOT NULL,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(collection_id, path)
);

CREATE TABLE IF NOT EXISTS chunks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    kind        TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL DEFAULT '',
    start_line  INTEGER NOT NULL,
    end_line    INTEGER NOT NULL,
    content     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// vecDDL is built at init time so the embedding dimension can vary by
// configured model. collection_id is a partition key, which keeps each
// repository's vectors in a separate shard of the index.
const vecDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    collection_id INTEGER PARTITION KEY,
    embedding float[%d]
);
`

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB, dimension int) error {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf(vecDDL, dimension))
	return err
}
