package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/yliasolom/graph-search/log"
	"github.com/yliasolom/graph-search/news"
	"github.com/yliasolom/graph-search/provider"
)

// VectorBuildOptions configure a vector index build.
type VectorBuildOptions struct {
	// ChunkSize and ChunkOverlap are passed to the splitter; zero values use
	// the defaults.
	ChunkSize    int
	ChunkOverlap int

	// Concurrency bounds parallel embedding calls; zero or negative means 4.
	Concurrency int
}

// VectorIndex is an immutable embedding index over article chunks. Chunks are
// kept in insertion order (article fetch order, then chunk ordinal) so that
// equal-score query results rank deterministically.
type VectorIndex struct {
	chunks    []Chunk
	dimension int
	provider  provider.Provider
	report    BuildReport
}

// VectorAnswer is a grounded answer with the chunks that supported it.
type VectorAnswer struct {
	Answer string
	Chunks []ScoredChunk
}

// MaxContextChars bounds the context assembled for answer generation.
const MaxContextChars = 6000

// BuildVectorIndex chunks and embeds articles. A chunk whose embedding call
// fails is recorded in the report and skipped; the build itself only fails on
// splitter errors or cancellation.
func BuildVectorIndex(ctx context.Context, p provider.Provider, articles []news.Article, opts VectorBuildOptions) (*VectorIndex, error) {
	chunks, err := ChunkArticles(articles, opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	// Embeddings land in a slice indexed by chunk position, so worker
	// scheduling cannot change the index order.
	embeddings := make([][]float32, len(chunks))
	embedErrs := make([]error, len(chunks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				embedErrs[i] = err
				return
			}
			embeddings[i], embedErrs[i] = p.Embed(ctx, chunks[i].Text)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := &VectorIndex{provider: p}
	for i, chunk := range chunks {
		if embedErrs[i] != nil {
			log.Warn("skipping chunk %s: %v", chunk.ID, embedErrs[i])
			index.report.Skipped = append(index.report.Skipped, ItemError{ID: chunk.ID, Err: embedErrs[i]})
			continue
		}
		if index.dimension == 0 {
			index.dimension = len(embeddings[i])
		} else if len(embeddings[i]) != index.dimension {
			index.report.Skipped = append(index.report.Skipped, ItemError{ID: chunk.ID, Err: ErrDimensionMismatch})
			continue
		}

		chunk.Position = len(index.chunks)
		chunk.Embedding = embeddings[i]
		index.chunks = append(index.chunks, chunk)
	}
	index.report.Indexed = len(index.chunks)

	log.Info("vector index built: %d chunks indexed, %d skipped", index.report.Indexed, len(index.report.Skipped))
	return index, nil
}

// Report returns the build report.
func (v *VectorIndex) Report() BuildReport {
	return v.report
}

// Len returns the number of indexed chunks.
func (v *VectorIndex) Len() int {
	return len(v.chunks)
}

// Dimension returns the embedding dimension, zero for an empty index.
func (v *VectorIndex) Dimension() int {
	return v.dimension
}

// Query embeds the question and returns up to k chunks ranked by
// non-increasing cosine similarity. Ties rank by insertion order, so repeated
// queries are deterministic. Returns ErrEmptyIndex when nothing is indexed.
func (v *VectorIndex) Query(ctx context.Context, question string, k int) ([]ScoredChunk, error) {
	if len(v.chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryEmbedding, err := v.provider.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryEmbedding) != v.dimension {
		return nil, fmt.Errorf("%w: query %d vs index %d", ErrDimensionMismatch, len(queryEmbedding), v.dimension)
	}

	scored := make([]ScoredChunk, len(v.chunks))
	for i, chunk := range v.chunks {
		scored[i] = ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(queryEmbedding, chunk.Embedding),
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Position < scored[j].Chunk.Position
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Answer retrieves the top-k chunks for question and asks the provider for a
// grounded answer over them.
func (v *VectorIndex) Answer(ctx context.Context, question string, k int) (*VectorAnswer, error) {
	results, err := v.Query(ctx, question, k)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
%s

Question: %s

Answer:`, buildChunkContext(results, MaxContextChars), question)

	answer, err := v.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &VectorAnswer{Answer: answer, Chunks: results}, nil
}

// buildChunkContext serializes retrieved chunks into a bounded context block.
func buildChunkContext(results []ScoredChunk, maxChars int) string {
	var b strings.Builder
	for i, result := range results {
		section := fmt.Sprintf("Passage %d (article %s, score %.4f):\n%s\n\n",
			i+1, result.Chunk.ArticleID, result.Score, result.Chunk.Text)
		if b.Len()+len(section) > maxChars {
			break
		}
		b.WriteString(section)
	}
	return strings.TrimRight(b.String(), "\n")
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors; zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
