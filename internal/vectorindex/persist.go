package vectorindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/dshills/whycontext-mcp/internal/storage"
)

const (
	blobMagic   = "WCVI"
	blobVersion = uint32(1)
	headerSize  = 16 // magic + version + dimension + count
)

// Save writes the vector blob and the id sidecar. A no-op in degraded mode.
func (x *Index) Save(ctx context.Context) error {
	if !x.available {
		x.logger.Debug("vector index unavailable, skipping save")
		return nil
	}
	if x.cfg.IndexPath == "" || x.cfg.MetadataPath == "" {
		return ErrNoPath
	}

	// Hold the writer lock so blob and sidecar describe the same snapshot
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	snap := x.current.Load()

	blob, err := encodeBlob(snap)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(x.cfg.IndexPath, blob); err != nil {
		return fmt.Errorf("failed to write index blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(x.cfg.MetadataPath), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(x.cfg.MetadataPath)
	if err != nil {
		return fmt.Errorf("failed to open index metadata: %w", err)
	}
	defer func() { _ = store.Close() }()

	docs := make([]storage.Document, len(snap.ids))
	for pos, id := range snap.ids {
		docs[pos] = storage.Document{Position: pos, DocID: id, Removed: snap.removed[pos]}
	}
	meta := storage.IndexMeta{
		Dimension:     snap.dimension,
		Metric:        x.cfg.Metric,
		TotalSearches: x.totalSearches.Load(),
	}
	if err := store.ReplaceDocuments(ctx, docs, meta); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}

	x.logger.WithField("documents", len(snap.ids)).Info("saved vector index")
	return nil
}

// Load replaces the index contents with the persisted artifacts.
// Returns ErrIndexNotFound when nothing has been saved yet. A no-op in degraded mode.
func (x *Index) Load(ctx context.Context) error {
	if !x.available {
		x.logger.Debug("vector index unavailable, skipping load")
		return nil
	}
	if x.cfg.IndexPath == "" || x.cfg.MetadataPath == "" {
		return ErrNoPath
	}

	raw, err := os.ReadFile(x.cfg.IndexPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, x.cfg.IndexPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read index blob: %w", err)
	}
	if _, err := os.Stat(x.cfg.MetadataPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, x.cfg.MetadataPath)
	}

	dimension, vectors, err := decodeBlob(raw)
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(x.cfg.MetadataPath)
	if err != nil {
		return fmt.Errorf("failed to open index metadata: %w", err)
	}
	defer func() { _ = store.Close() }()

	meta, err := store.GetIndexMeta(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: missing metadata", ErrIndexNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read index metadata: %w", err)
	}
	if meta.Metric != x.cfg.Metric {
		return fmt.Errorf("%w: metric %s, configured %s", ErrConfigMismatch, meta.Metric, x.cfg.Metric)
	}
	if meta.Dimension != dimension || (x.cfg.Dimension != 0 && x.cfg.Dimension != dimension) {
		return fmt.Errorf("%w: dimension %d", ErrConfigMismatch, dimension)
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index documents: %w", err)
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("%w: %d vectors, %d documents", ErrCorruptIndex, len(vectors), len(docs))
	}

	next := emptySnapshot(dimension)
	for i, doc := range docs {
		if doc.Position != i {
			return fmt.Errorf("%w: gap at position %d", ErrCorruptIndex, i)
		}
		next.positions[doc.DocID] = i
		next.ids = append(next.ids, doc.DocID)
		next.removed = append(next.removed, doc.Removed)
	}
	next.vectors = vectors

	x.writeMu.Lock()
	x.current.Store(next)
	x.totalSearches.Store(meta.TotalSearches)
	x.writeMu.Unlock()

	x.logger.WithField("documents", len(docs)).Info("loaded vector index")
	return nil
}

// encodeBlob serializes a snapshot as header + little-endian float32 payload, zstd-compressed
func encodeBlob(snap *snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(snap.vectors)*snap.dimension*4)

	buf.WriteString(blobMagic)
	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:], blobVersion)
	binary.LittleEndian.PutUint32(header[4:], uint32(snap.dimension))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(snap.vectors)))
	buf.Write(header[:])

	for _, vec := range snap.vectors {
		buf.Write(storage.SerializeVector(vec))
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(buf.Bytes(), nil), nil
}

func decodeBlob(compressed []byte) (int, [][]float32, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if len(raw) < headerSize || string(raw[:4]) != blobMagic {
		return 0, nil, fmt.Errorf("%w: bad header", ErrCorruptIndex)
	}
	if v := binary.LittleEndian.Uint32(raw[4:]); v != blobVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
	}
	dimension := int(binary.LittleEndian.Uint32(raw[8:]))
	count := int(binary.LittleEndian.Uint32(raw[12:]))

	payload := raw[headerSize:]
	if len(payload) != count*dimension*4 {
		return 0, nil, fmt.Errorf("%w: payload size %d for %d x %d", ErrCorruptIndex, len(payload), count, dimension)
	}

	vectors := make([][]float32, count)
	stride := dimension * 4
	for i := range vectors {
		vectors[i] = storage.DeserializeVector(payload[i*stride : (i+1)*stride])
	}
	return dimension, vectors, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
