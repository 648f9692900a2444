package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yliasolom/graph-search/rag"
)

func newTestSqliteGraph(t *testing.T) *SqliteGraph {
	t.Helper()

	g, err := NewSqliteGraph(SqliteOptions{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestSqliteGraphNodeLookups(t *testing.T) {
	g := newTestSqliteGraph(t)
	seedGraph(t, g)
	ctx := context.Background()

	node, err := g.NodeByID(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "OpenAI", node.Label)
	assert.Equal(t, rag.NodeEntity, node.Type)
	assert.Equal(t, "organization", node.Properties["entity_type"])

	missing, err := g.NodeByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	nodes, err := g.NodesByLabel(ctx, "OPENAI")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "e1", nodes[0].ID)
}

func TestSqliteGraphUpsertNode(t *testing.T) {
	g := newTestSqliteGraph(t)
	ctx := context.Background()

	require.NoError(t, g.AddNode(ctx, rag.GraphNode{ID: "e1", Type: rag.NodeEntity, Label: "Old Name"}))
	require.NoError(t, g.AddNode(ctx, rag.GraphNode{ID: "e1", Type: rag.NodeEntity, Label: "New Name"}))

	old, err := g.NodesByLabel(ctx, "old name")
	require.NoError(t, err)
	assert.Empty(t, old)

	current, err := g.NodesByLabel(ctx, "new name")
	require.NoError(t, err)
	require.Len(t, current, 1)
}

func TestSqliteGraphNeighborhood(t *testing.T) {
	g := newTestSqliteGraph(t)
	seedGraph(t, g)
	ctx := context.Background()

	nodes, edges, err := g.Neighborhood(ctx, []string{"e1"}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, nodes, 4)
	assert.Len(t, edges, 4)

	// Budget caps expansion.
	nodes, _, err = g.Neighborhood(ctx, []string{"e1"}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	// Unknown seeds yield an empty subgraph.
	nodes, edges, err = g.Neighborhood(ctx, []string{"ghost"}, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}
