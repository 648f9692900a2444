package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yliasolom/graph-search/provider"
)

const (
	snapshotFormat  = "graph-search/vector-index"
	snapshotVersion = 1
)

// indexSnapshot is the self-describing persisted form of a vector index. The
// embedding dimension travels with the blob so a restore can reject
// incompatible data before any query runs.
type indexSnapshot struct {
	Format    string  `json:"format"`
	Version   int     `json:"version"`
	Dimension int     `json:"dimension"`
	Chunks    []Chunk `json:"chunks"`
}

// Snapshot serializes the index. Restoring the blob yields an index whose
// query results are identical to the original's.
func (v *VectorIndex) Snapshot() ([]byte, error) {
	snap := indexSnapshot{
		Format:    snapshotFormat,
		Version:   snapshotVersion,
		Dimension: v.dimension,
		Chunks:    v.chunks,
	}

	blob, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal index snapshot: %w", err)
	}
	return blob, nil
}

// RestoreVectorIndex rebuilds an index from a snapshot blob. The provider is
// used for query embeddings and should embed into the same space the snapshot
// was built with.
func RestoreVectorIndex(p provider.Provider, blob []byte) (*VectorIndex, error) {
	var snap indexSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal index snapshot: %w", err)
	}

	if snap.Format != snapshotFormat {
		return nil, fmt.Errorf("unexpected snapshot format %q", snap.Format)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	for _, chunk := range snap.Chunks {
		if len(chunk.Embedding) != snap.Dimension {
			return nil, fmt.Errorf("%w: chunk %s has %d dims, snapshot declares %d",
				ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), snap.Dimension)
		}
	}

	index := &VectorIndex{
		chunks:    snap.Chunks,
		dimension: snap.Dimension,
		provider:  p,
	}
	index.report.Indexed = len(snap.Chunks)
	return index, nil
}

// SaveTo writes the index snapshot to a blob store under key.
func (v *VectorIndex) SaveTo(ctx context.Context, store BlobStore, key string) error {
	blob, err := v.Snapshot()
	if err != nil {
		return err
	}
	if err := store.Save(ctx, key, blob); err != nil {
		return fmt.Errorf("save index %q: %w", key, err)
	}
	return nil
}

// LoadVectorIndex reads a snapshot from a blob store and restores it.
func LoadVectorIndex(ctx context.Context, store BlobStore, key string, p provider.Provider) (*VectorIndex, error) {
	blob, err := store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load index %q: %w", key, err)
	}
	return RestoreVectorIndex(p, blob)
}
