package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Embedding cache operations

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	query := `
		INSERT INTO embedding_cache (hash, model, provider, vector, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash, model) DO UPDATE SET
			provider = excluded.provider,
			vector = excluded.vector,
			dimension = excluded.dimension
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		embedding.Hash, embedding.Model, embedding.Provider,
		embedding.Vector, embedding.Dimension, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, hash, model string) (*Embedding, error) {
	query := `
		SELECT hash, model, provider, vector, dimension, created_at
		FROM embedding_cache
		WHERE hash = ? AND model = ?
	`
	var emb Embedding
	err := s.db.QueryRowContext(ctx, query, hash, model).Scan(
		&emb.Hash, &emb.Model, &emb.Provider, &emb.Vector, &emb.Dimension, &emb.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, model string) ([]*Embedding, error) {
	query := `
		SELECT hash, model, provider, vector, dimension, created_at
		FROM embedding_cache
		WHERE model = ?
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, model)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var embeddings []*Embedding
	for rows.Next() {
		var emb Embedding
		if err := rows.Scan(&emb.Hash, &emb.Model, &emb.Provider, &emb.Vector, &emb.Dimension, &emb.CreatedAt); err != nil {
			return nil, err
		}
		embeddings = append(embeddings, &emb)
	}
	return embeddings, rows.Err()
}

func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_cache").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStorage) DeleteEmbeddings(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM embedding_cache"); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}

// Vector index sidecar operations

// ReplaceDocuments atomically rewrites the document table and index metadata
func (s *SQLiteStorage) ReplaceDocuments(ctx context.Context, docs []Document, meta IndexMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_documents"); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_documents (position, doc_id, removed, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, doc := range docs {
		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, doc.Position, doc.DocID, boolToInt(doc.Removed), createdAt); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.DocID, err)
		}
	}

	savedAt := meta.SavedAt
	if savedAt.IsZero() {
		savedAt = now
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_meta (id, dimension, metric, total_searches, saved_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			dimension = excluded.dimension,
			metric = excluded.metric,
			total_searches = excluded.total_searches,
			saved_at = excluded.saved_at
	`, meta.Dimension, meta.Metric, meta.TotalSearches, savedAt)
	if err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, doc_id, removed, created_at
		FROM index_documents
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var doc Document
		var removed int
		if err := rows.Scan(&doc.Position, &doc.DocID, &removed, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Removed = removed != 0
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) GetIndexMeta(ctx context.Context) (*IndexMeta, error) {
	var meta IndexMeta
	var savedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT dimension, metric, total_searches, saved_at
		FROM index_meta
		WHERE id = 1
	`).Scan(&meta.Dimension, &meta.Metric, &meta.TotalSearches, &savedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if savedAt.Valid {
		meta.SavedAt = savedAt.Time
	}
	return &meta, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
