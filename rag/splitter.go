package rag

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/yliasolom/graph-search/news"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap bound each chunk's character
	// count and the shared tail between consecutive chunks.
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// ChunkArticles splits article bodies into overlapping chunks, preserving
// article order and assigning per-article ordinals plus a global position.
// Articles with empty bodies yield no chunks.
func ChunkArticles(articles []news.Article, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	sp := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
	)

	var chunks []Chunk
	position := 0
	for _, article := range articles {
		body := strings.TrimSpace(article.Body)
		if body == "" {
			continue
		}

		pieces, err := sp.SplitText(body)
		if err != nil {
			return nil, fmt.Errorf("split article %s: %w", article.ID, err)
		}

		for ordinal, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:        fmt.Sprintf("%s-%d", article.ID, ordinal),
				ArticleID: article.ID,
				Text:      piece,
				Ordinal:   ordinal,
				Position:  position,
			})
			position++
		}
	}

	return chunks, nil
}
