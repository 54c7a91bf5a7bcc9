package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/whycontext-mcp/internal/storage"
)

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close storage: %v", err)
		}
	})

	return store
}

func TestEmbeddingOperations(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	t.Run("UpsertAndGet", func(t *testing.T) {
		vec := []float32{0.1, 0.2, 0.3}
		emb := &storage.Embedding{
			Hash:      "abc123",
			Model:     "all-MiniLM-L6-v2",
			Provider:  "local",
			Vector:    storage.SerializeVector(vec),
			Dimension: len(vec),
		}
		require.NoError(t, store.UpsertEmbedding(ctx, emb))
		assert.False(t, emb.CreatedAt.IsZero())

		got, err := store.GetEmbedding(ctx, "abc123", "all-MiniLM-L6-v2")
		require.NoError(t, err)
		assert.Equal(t, "local", got.Provider)
		assert.Equal(t, 3, got.Dimension)
		assert.InDeltaSlice(t, vec, storage.DeserializeVector(got.Vector), 1e-6)
	})

	t.Run("UpsertReplacesVector", func(t *testing.T) {
		require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
			Hash: "dup", Model: "m", Vector: storage.SerializeVector([]float32{1}), Dimension: 1,
		}))
		require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
			Hash: "dup", Model: "m", Vector: storage.SerializeVector([]float32{2}), Dimension: 1,
		}))

		got, err := store.GetEmbedding(ctx, "dup", "m")
		require.NoError(t, err)
		assert.Equal(t, []float32{2}, storage.DeserializeVector(got.Vector))
	})

	t.Run("ModelScopesKey", func(t *testing.T) {
		_, err := store.GetEmbedding(ctx, "abc123", "other-model")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListAndCount", func(t *testing.T) {
		list, err := store.ListEmbeddings(ctx, "m")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		count, err := store.CountEmbeddings(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("DeleteAll", func(t *testing.T) {
		require.NoError(t, store.DeleteEmbeddings(ctx))
		count, err := store.CountEmbeddings(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestDocumentOperations(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	_, err := store.GetIndexMeta(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	docs := []storage.Document{
		{Position: 0, DocID: "commit_aaa"},
		{Position: 1, DocID: "commit_bbb", Removed: true},
		{Position: 2, DocID: "commit_ccc"},
	}
	require.NoError(t, store.ReplaceDocuments(ctx, docs, storage.IndexMeta{
		Dimension: 384, Metric: "cosine", TotalSearches: 7,
	}))

	got, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "commit_aaa", got[0].DocID)
	assert.True(t, got[1].Removed)
	assert.Equal(t, 2, got[2].Position)

	meta, err := store.GetIndexMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 384, meta.Dimension)
	assert.Equal(t, "cosine", meta.Metric)
	assert.Equal(t, int64(7), meta.TotalSearches)

	t.Run("ReplaceOverwrites", func(t *testing.T) {
		require.NoError(t, store.ReplaceDocuments(ctx, []storage.Document{
			{Position: 0, DocID: "commit_zzz"},
		}, storage.IndexMeta{Dimension: 8, Metric: "ip"}))

		got, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "commit_zzz", got[0].DocID)

		meta, err := store.GetIndexMeta(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, meta.Dimension)
	})

	t.Run("DuplicateDocIDRollsBack", func(t *testing.T) {
		err := store.ReplaceDocuments(ctx, []storage.Document{
			{Position: 0, DocID: "commit_x"},
			{Position: 1, DocID: "commit_x"},
		}, storage.IndexMeta{Dimension: 8, Metric: "ip"})
		require.Error(t, err)

		got, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "commit_zzz", got[0].DocID)
	})
}

func TestFileBackedStoragePersists(t *testing.T) {
	path := t.TempDir() + "/embeddings.db"
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
		Hash: "h", Model: "m", Vector: storage.SerializeVector([]float32{0.5}), Dimension: 1,
	}))
	require.NoError(t, store.Close())

	reopened, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetEmbedding(ctx, "h", "m")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, storage.DeserializeVector(got.Vector))
}
