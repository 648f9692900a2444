package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yliasolom/graph-search/news"
	"github.com/yliasolom/graph-search/provider"
)

func testArticles() []news.Article {
	return []news.Article{
		{ID: "a1", Title: "First", Body: "Quantum computing breakthrough announced by researchers."},
		{ID: "a2", Title: "Second", Body: "Stock markets rallied after the central bank decision."},
		{ID: "a3", Title: "Third", Body: "Quantum computing breakthrough announced by researchers."},
	}
}

func TestBuildVectorIndex(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, index.Len())
	assert.Equal(t, 8, index.Dimension())
	assert.Empty(t, index.Report().Skipped)

	// Insertion order follows article order.
	results, err := index.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestQueryEmptyIndex(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	index, err := BuildVectorIndex(context.Background(), p, nil, VectorBuildOptions{})
	require.NoError(t, err)

	_, err = index.Query(context.Background(), "question", 3)
	assert.ErrorIs(t, err, ErrEmptyIndex)

	_, err = index.Answer(context.Background(), "question", 3)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestQueryRankingAndTieBreak(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{})
	require.NoError(t, err)

	// Articles a1 and a3 share a body, so their chunks tie at score 1.0 for
	// the identical query. The earlier-inserted article must rank first.
	results, err := index.Query(context.Background(), "Quantum computing breakthrough announced by researchers.", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a1", results[0].Chunk.ArticleID)
	assert.Equal(t, "a3", results[1].Chunk.ArticleID)
	assert.Equal(t, "a2", results[2].Chunk.ArticleID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, results[0].Score, results[1].Score)

	// Scores are non-increasing.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestQueryKLargerThanIndex(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{})
	require.NoError(t, err)

	results, err := index.Query(context.Background(), "question", 100)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	_, err = index.Query(context.Background(), "question", 0)
	assert.Error(t, err)
}

func TestQueryDeterministic(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{Concurrency: 2})
	require.NoError(t, err)

	first, err := index.Query(context.Background(), "central bank decision", 3)
	require.NoError(t, err)
	second, err := index.Query(context.Background(), "central bank decision", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildSkipsFailedChunks(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8, FailFirst: 1}

	// Exactly one embed call fails, whichever chunk it lands on.
	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{Concurrency: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, index.Len())
	require.Len(t, index.Report().Skipped, 1)
	assert.Equal(t, 2, index.Report().Indexed)
}

func TestBuildCancelled(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildVectorIndex(ctx, p, testArticles(), VectorBuildOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnswerBuildsBoundedContext(t *testing.T) {
	p := &provider.StaticProvider{Dimension: 8, CompleteResponse: "grounded answer"}

	index, err := BuildVectorIndex(context.Background(), p, testArticles(), VectorBuildOptions{})
	require.NoError(t, err)

	answer, err := index.Answer(context.Background(), "what happened with quantum computing", 2)
	require.NoError(t, err)

	assert.Equal(t, "grounded answer", answer.Answer)
	assert.Len(t, answer.Chunks, 2)
}

func TestBuildChunkContextTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	results := []ScoredChunk{
		{Chunk: Chunk{ArticleID: "a1", Text: long}, Score: 0.9},
		{Chunk: Chunk{ArticleID: "a2", Text: long}, Score: 0.8},
	}

	contextStr := buildChunkContext(results, 400)
	assert.Contains(t, contextStr, "a1")
	assert.NotContains(t, contextStr, "a2")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestChunkArticlesOrdinals(t *testing.T) {
	long := strings.Repeat("sentence with several words in it. ", 40)
	articles := []news.Article{
		{ID: "a1", Body: long},
		{ID: "a2", Body: ""},
		{ID: "a3", Body: "short body"},
	}

	chunks, err := ChunkArticles(articles, 200, 20)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// a2 yields nothing, a1 yields several chunks with increasing ordinals.
	var a1Count int
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
		assert.NotEqual(t, "a2", chunk.ArticleID)
		if chunk.ArticleID == "a1" {
			assert.Equal(t, a1Count, chunk.Ordinal)
			a1Count++
		}
	}
	assert.Greater(t, a1Count, 1)

	last := chunks[len(chunks)-1]
	assert.Equal(t, "a3", last.ArticleID)
	assert.Equal(t, 0, last.Ordinal)
}
