package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yliasolom/graph-search/provider"
)

// mapBlobStore is an in-memory BlobStore for round-trip tests.
type mapBlobStore struct {
	blobs map[string][]byte
}

func newMapBlobStore() *mapBlobStore {
	return &mapBlobStore{blobs: make(map[string][]byte)}
}

func (m *mapBlobStore) Save(ctx context.Context, key string, blob []byte) error {
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *mapBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	blob, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", key)
	}
	return blob, nil
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{})
	require.NoError(t, err)

	blob, err := index.Snapshot()
	require.NoError(t, err)

	restored, err := RestoreVectorIndex(p, blob)
	require.NoError(t, err)
	assert.Equal(t, index.Len(), restored.Len())
	assert.Equal(t, index.Dimension(), restored.Dimension())

	// Identical query results before and after the round trip.
	question := "central bank decision"
	original, err := index.Query(context.Background(), question, 3)
	require.NoError(t, err)
	afterRestore, err := restored.Query(context.Background(), question, 3)
	require.NoError(t, err)
	assert.Equal(t, original, afterRestore)
}

func TestRestoreRejectsBadBlobs(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	_, err := RestoreVectorIndex(p, []byte("not json"))
	assert.Error(t, err)

	_, err = RestoreVectorIndex(p, []byte(`{"format":"something-else","version":1}`))
	assert.Error(t, err)

	_, err = RestoreVectorIndex(p, []byte(`{"format":"graph-search/vector-index","version":99}`))
	assert.Error(t, err)

	// Dimension declared in the header must match every chunk.
	bad := `{"format":"graph-search/vector-index","version":1,"dimension":4,"chunks":[{"id":"c","article_id":"a","text":"t","embedding":[1,2]}]}`
	_, err = RestoreVectorIndex(p, []byte(bad))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSaveToLoadVectorIndex(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}
	blobs := newMapBlobStore()

	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{})
	require.NoError(t, err)

	require.NoError(t, index.SaveTo(context.Background(), blobs, "news-index"))

	loaded, err := LoadVectorIndex(context.Background(), blobs, "news-index", p)
	require.NoError(t, err)
	assert.Equal(t, index.Len(), loaded.Len())

	_, err = LoadVectorIndex(context.Background(), blobs, "missing", p)
	assert.Error(t, err)
}
