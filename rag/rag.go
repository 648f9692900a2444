// Package rag provides the two retrieval backends used to answer questions
// about fetched news: a semantic vector index and an entity knowledge graph,
// plus a router that dispatches queries to whichever backend has been built.
package rag

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyIndex is returned by queries against an index with no entries.
	ErrEmptyIndex = errors.New("vector index is empty")

	// ErrNotBuilt is returned by the router when the requested backend has no
	// completed build.
	ErrNotBuilt = errors.New("retrieval backend not built")

	// ErrBuildInProgress is returned when a build is already running for the
	// same target.
	ErrBuildInProgress = errors.New("build already in progress")

	// ErrDimensionMismatch is returned when an embedding does not match the
	// index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Chunk is one embedded slice of an article body. Position is the insertion
// order across the whole index; Ordinal is the chunk's position within its
// article.
type Chunk struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"article_id"`
	Text      string    `json:"text"`
	Ordinal   int       `json:"ordinal"`
	Position  int       `json:"position"`
	Embedding []float32 `json:"embedding"`
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// ItemError records a per-item failure during a build.
type ItemError struct {
	// ID identifies the skipped item: a chunk ID for vector builds, an
	// article ID for graph builds.
	ID  string
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.ID, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// BuildReport summarizes a build: how many items were indexed and which were
// skipped. A build with skips is still a completed build.
type BuildReport struct {
	Indexed int
	Skipped []ItemError
}

// GraphNodeType distinguishes extracted entities from the articles that
// mention them.
type GraphNodeType string

const (
	NodeEntity  GraphNodeType = "entity"
	NodeArticle GraphNodeType = "article"
)

// GraphNode is a node in the knowledge graph. Label carries the original
// casing; identity within a build is case-insensitive on the label.
type GraphNode struct {
	ID         string            `json:"id"`
	Type       GraphNodeType     `json:"type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GraphEdge is a directed, labeled edge between two nodes.
type GraphEdge struct {
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Relation   string            `json:"relation"`
	Properties map[string]string `json:"properties,omitempty"`
}

// EdgeMentions links an article node to an entity it mentions.
const EdgeMentions = "MENTIONS"

// GraphStore is the minimal persistence surface the graph engine builds
// against. Label lookups are case-insensitive. Stores are append-only after a
// build completes.
type GraphStore interface {
	AddNode(ctx context.Context, node GraphNode) error
	AddEdge(ctx context.Context, edge GraphEdge) error
	NodeByID(ctx context.Context, id string) (*GraphNode, error)
	NodesByLabel(ctx context.Context, label string) ([]GraphNode, error)

	// Neighborhood expands up to hops from the seed nodes, visiting at most
	// maxNodes nodes, and returns the induced subgraph.
	Neighborhood(ctx context.Context, seedIDs []string, hops, maxNodes int) ([]GraphNode, []GraphEdge, error)
}

// BlobStore persists opaque index snapshots under a key.
type BlobStore interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}
