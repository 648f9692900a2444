// Package store provides graph and blob persistence backends for the
// retrieval engines.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/yliasolom/graph-search/rag"
)

// MemoryGraph is an in-memory GraphStore, the default backend for builds and
// tests. Safe for concurrent reads after the build completes.
type MemoryGraph struct {
	mu      sync.RWMutex
	nodes   map[string]rag.GraphNode
	byLabel map[string][]string
	out     map[string][]rag.GraphEdge
	in      map[string][]rag.GraphEdge
}

// NewMemoryGraph creates an empty in-memory graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		nodes:   make(map[string]rag.GraphNode),
		byLabel: make(map[string][]string),
		out:     make(map[string][]rag.GraphEdge),
		in:      make(map[string][]rag.GraphEdge),
	}
}

// AddNode stores a node; re-adding an ID overwrites it.
func (m *MemoryGraph) AddNode(ctx context.Context, node rag.GraphNode) error {
	if node.ID == "" {
		return fmt.Errorf("node ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.nodes[node.ID]; ok {
		m.removeLabelIndex(existing)
	}
	m.nodes[node.ID] = node

	norm := rag.NormalizeLabel(node.Label)
	m.byLabel[norm] = append(m.byLabel[norm], node.ID)
	return nil
}

func (m *MemoryGraph) removeLabelIndex(node rag.GraphNode) {
	norm := rag.NormalizeLabel(node.Label)
	ids := m.byLabel[norm]
	for i, id := range ids {
		if id == node.ID {
			m.byLabel[norm] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// AddEdge stores a directed edge; both endpoints must exist.
func (m *MemoryGraph) AddEdge(ctx context.Context, edge rag.GraphEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[edge.Source]; !ok {
		return fmt.Errorf("edge source %s not found", edge.Source)
	}
	if _, ok := m.nodes[edge.Target]; !ok {
		return fmt.Errorf("edge target %s not found", edge.Target)
	}

	m.out[edge.Source] = append(m.out[edge.Source], edge)
	m.in[edge.Target] = append(m.in[edge.Target], edge)
	return nil
}

// NodeByID returns the node with the given ID, or nil when absent.
func (m *MemoryGraph) NodeByID(ctx context.Context, id string) (*rag.GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[id]
	if !ok {
		return nil, nil
	}
	return &node, nil
}

// NodesByLabel returns nodes whose label matches case-insensitively.
func (m *MemoryGraph) NodesByLabel(ctx context.Context, label string) ([]rag.GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var nodes []rag.GraphNode
	for _, id := range m.byLabel[rag.NormalizeLabel(label)] {
		nodes = append(nodes, m.nodes[id])
	}
	return nodes, nil
}

// Neighborhood expands breadth-first from the seeds up to hops, visiting at
// most maxNodes nodes, and returns the induced subgraph. Edges are followed
// in both directions.
func (m *MemoryGraph) Neighborhood(ctx context.Context, seedIDs []string, hops, maxNodes int) ([]rag.GraphNode, []rag.GraphEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxNodes <= 0 {
		maxNodes = len(m.nodes)
	}

	visited := make(map[string]bool)
	var nodes []rag.GraphNode

	frontier := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		if node, ok := m.nodes[id]; ok && !visited[id] && len(nodes) < maxNodes {
			visited[id] = true
			nodes = append(nodes, node)
			frontier = append(frontier, id)
		}
	}

	for hop := 0; hop < hops && len(frontier) > 0 && len(nodes) < maxNodes; hop++ {
		var next []string
		for _, id := range frontier {
			for _, edge := range m.out[id] {
				if !visited[edge.Target] && len(nodes) < maxNodes {
					visited[edge.Target] = true
					nodes = append(nodes, m.nodes[edge.Target])
					next = append(next, edge.Target)
				}
			}
			for _, edge := range m.in[id] {
				if !visited[edge.Source] && len(nodes) < maxNodes {
					visited[edge.Source] = true
					nodes = append(nodes, m.nodes[edge.Source])
					next = append(next, edge.Source)
				}
			}
		}
		frontier = next
	}

	var edges []rag.GraphEdge
	for id := range visited {
		for _, edge := range m.out[id] {
			if visited[edge.Target] {
				edges = append(edges, edge)
			}
		}
	}

	return nodes, edges, nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryGraph) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// EdgeCount returns the number of stored edges.
func (m *MemoryGraph) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, edges := range m.out {
		count += len(edges)
	}
	return count
}
