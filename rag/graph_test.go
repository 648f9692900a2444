package rag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yliasolom/graph-search/news"
	"github.com/yliasolom/graph-search/provider"
	"github.com/yliasolom/graph-search/rag"
	"github.com/yliasolom/graph-search/rag/store"
)

const extractionOne = `{
	"entities": [
		{"name": "OpenAI", "type": "organization"},
		{"name": "Sam Altman", "type": "person"}
	],
	"relations": [
		{"source": "Sam Altman", "target": "OpenAI", "relation": "LEADS"}
	]
}`

const extractionTwo = `{
	"entities": [
		{"name": "openai", "type": "organization"},
		{"name": "Microsoft", "type": "organization"}
	],
	"relations": [
		{"source": "Microsoft", "target": "OpenAI", "relation": "INVESTS_IN"},
		{"source": "Microsoft", "target": "Unknown Corp", "relation": "ACQUIRES"}
	]
}`

func graphArticles() []news.Article {
	return []news.Article{
		{ID: "a1", Title: "Altman speaks", Body: "body one", URL: "https://example.com/1"},
		{ID: "a2", Title: "Microsoft deal", Body: "body two", URL: "https://example.com/2"},
	}
}

func TestGraphBuildMergesLabelsCaseInsensitively(t *testing.T) {
	p := &provider.StaticProvider{JSONResponses: []string{extractionOne, extractionTwo}}
	graph := store.NewMemoryGraph()

	engine, err := rag.NewGraphEngine(p, graph)
	require.NoError(t, err)

	report, err := engine.Build(context.Background(), graphArticles())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Empty(t, report.Skipped)
	assert.True(t, engine.Built())

	// "OpenAI" and "openai" collapse to one node keeping first-seen casing.
	nodes, err := graph.NodesByLabel(context.Background(), "OPENAI")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "OpenAI", nodes[0].Label)
	assert.Equal(t, rag.NodeEntity, nodes[0].Type)

	// Entities: OpenAI, Sam Altman, Microsoft. Articles: 2.
	assert.Equal(t, 5, graph.NodeCount())

	// MENTIONS per extracted entity (2+2) plus 2 resolvable relations; the
	// relation to an unlisted entity is dropped.
	assert.Equal(t, 6, graph.EdgeCount())
}

func TestGraphBuildSkipsFailedExtractions(t *testing.T) {
	p := &provider.StaticProvider{FailFirst: 1, JSONResponses: []string{extractionOne}}
	graph := store.NewMemoryGraph()

	engine, err := rag.NewGraphEngine(p, graph)
	require.NoError(t, err)

	report, err := engine.Build(context.Background(), graphArticles())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Indexed)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "a1", report.Skipped[0].ID)
}

func TestGraphBuildCancelled(t *testing.T) {
	p := &provider.StaticProvider{JSONResponses: []string{extractionOne}}

	engine, err := rag.NewGraphEngine(p, store.NewMemoryGraph())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Build(ctx, graphArticles())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, engine.Built())
}

func TestGraphQuery(t *testing.T) {
	p := &provider.StaticProvider{
		JSONResponses:    []string{extractionOne, extractionTwo},
		CompleteResponse: "Microsoft invests in OpenAI.",
	}
	graph := store.NewMemoryGraph()

	engine, err := rag.NewGraphEngine(p, graph)
	require.NoError(t, err)
	_, err = engine.Build(context.Background(), graphArticles())
	require.NoError(t, err)

	answer, err := engine.Query(context.Background(), "What is the relation between Microsoft and OpenAI?", 2)
	require.NoError(t, err)

	assert.Equal(t, "Microsoft invests in OpenAI.", answer.Answer)
	assert.NotEmpty(t, answer.Nodes)
	assert.NotEmpty(t, answer.Edges)
}

func TestGraphQueryNotBuilt(t *testing.T) {
	p := &provider.StaticProvider{}

	engine, err := rag.NewGraphEngine(p, store.NewMemoryGraph())
	require.NoError(t, err)

	_, err = engine.Query(context.Background(), "anything", 1)
	assert.ErrorIs(t, err, rag.ErrNotBuilt)
}

func TestGraphQueryNoMatchingEntities(t *testing.T) {
	p := &provider.StaticProvider{JSONResponses: []string{extractionOne}}

	engine, err := rag.NewGraphEngine(p, store.NewMemoryGraph())
	require.NoError(t, err)
	_, err = engine.Build(context.Background(), graphArticles()[:1])
	require.NoError(t, err)

	calls := p.Calls()
	answer, err := engine.Query(context.Background(), "zzz qqq", 1)
	require.NoError(t, err)

	assert.Empty(t, answer.Nodes)
	assert.NotEmpty(t, answer.Answer)
	// No provider call when nothing seeds the subgraph.
	assert.Equal(t, calls, p.Calls())
}

func TestGraphRebuildIsomorphic(t *testing.T) {
	build := func() *store.MemoryGraph {
		p := &provider.StaticProvider{JSONResponses: []string{extractionOne, extractionTwo}}
		graph := store.NewMemoryGraph()
		engine, err := rag.NewGraphEngine(p, graph)
		require.NoError(t, err)
		_, err = engine.Build(context.Background(), graphArticles())
		require.NoError(t, err)
		return graph
	}

	first := build()
	second := build()

	// Node IDs differ per build; counts and label structure must not.
	assert.Equal(t, first.NodeCount(), second.NodeCount())
	assert.Equal(t, first.EdgeCount(), second.EdgeCount())

	for _, label := range []string{"OpenAI", "Sam Altman", "Microsoft"} {
		a, err := first.NodesByLabel(context.Background(), label)
		require.NoError(t, err)
		b, err := second.NodesByLabel(context.Background(), label)
		require.NoError(t, err)
		assert.Equal(t, len(a), len(b), label)
		require.Len(t, a, 1)
	}
}
