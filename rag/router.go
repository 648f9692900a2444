package rag

import (
	"context"
	"fmt"
	"sync"
)

// Backend selects which retrieval engine serves a query.
type Backend string

const (
	BackendVector Backend = "vector"
	BackendGraph  Backend = "graph"
)

// RouterResult reports which backend and k served the call alongside the
// answer and its supporting evidence.
type RouterResult struct {
	Backend Backend
	K       int
	Answer  string

	// Chunks is set for vector answers, Nodes/Edges for graph answers.
	Chunks []ScoredChunk
	Nodes  []GraphNode
	Edges  []GraphEdge
}

// Router dispatches questions to whichever backend has a completed build.
// Engines are registered after their builds finish; queries before that fail
// with ErrNotBuilt rather than silently returning nothing.
type Router struct {
	mu     sync.RWMutex
	vector *VectorIndex
	graph  *GraphEngine
}

// NewRouter creates a router with no backends registered.
func NewRouter() *Router {
	return &Router{}
}

// SetVector registers a built vector index.
func (r *Router) SetVector(index *VectorIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vector = index
}

// SetGraph registers a built graph engine.
func (r *Router) SetGraph(engine *GraphEngine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph = engine
}

// Answer routes the question to the requested backend. k is the result count
// for the vector backend and the hop depth for the graph backend.
func (r *Router) Answer(ctx context.Context, question string, backend Backend, k int) (*RouterResult, error) {
	r.mu.RLock()
	vector, graph := r.vector, r.graph
	r.mu.RUnlock()

	switch backend {
	case BackendVector:
		if vector == nil {
			return nil, fmt.Errorf("vector backend: %w", ErrNotBuilt)
		}
		answer, err := vector.Answer(ctx, question, k)
		if err != nil {
			return nil, err
		}
		return &RouterResult{
			Backend: BackendVector,
			K:       k,
			Answer:  answer.Answer,
			Chunks:  answer.Chunks,
		}, nil

	case BackendGraph:
		if graph == nil || !graph.Built() {
			return nil, fmt.Errorf("graph backend: %w", ErrNotBuilt)
		}
		answer, err := graph.Query(ctx, question, k)
		if err != nil {
			return nil, err
		}
		return &RouterResult{
			Backend: BackendGraph,
			K:       k,
			Answer:  answer.Answer,
			Nodes:   answer.Nodes,
			Edges:   answer.Edges,
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
