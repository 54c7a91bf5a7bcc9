package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting embeddings and vector index metadata
type Storage interface {
	// Embedding cache operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, hash, model string) (*Embedding, error)
	ListEmbeddings(ctx context.Context, model string) ([]*Embedding, error)
	CountEmbeddings(ctx context.Context) (int, error)
	DeleteEmbeddings(ctx context.Context) error

	// Vector index sidecar operations
	ReplaceDocuments(ctx context.Context, docs []Document, meta IndexMeta) error
	ListDocuments(ctx context.Context) ([]Document, error)
	GetIndexMeta(ctx context.Context) (*IndexMeta, error)

	// Database operations
	Close() error
}

// Embedding is a memoized vector keyed by content hash and model
type Embedding struct {
	Hash      string // SHA-256 hex of the embedded text
	Model     string
	Provider  string
	Vector    []byte // Serialized float32 array
	Dimension int
	CreatedAt time.Time
}

// Document maps a vector position in the index blob to a document id
type Document struct {
	Position  int
	DocID     string
	Removed   bool
	CreatedAt time.Time
}

// IndexMeta describes a persisted vector index
type IndexMeta struct {
	Dimension     int
	Metric        string
	TotalSearches int64
	SavedAt       time.Time
}
