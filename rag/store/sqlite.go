package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yliasolom/graph-search/rag"
)

// SqliteGraph is a GraphStore backed by SQLite. Labels are indexed on their
// normalized form so lookups stay case-insensitive.
type SqliteGraph struct {
	db          *sql.DB
	tablePrefix string
}

// SqliteOptions configuration for the SQLite connection.
type SqliteOptions struct {
	Path        string
	TablePrefix string // Default "graph"
}

// NewSqliteGraph opens (or creates) the database and initializes the schema.
func NewSqliteGraph(opts SqliteOptions) (*SqliteGraph, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tablePrefix := opts.TablePrefix
	if tablePrefix == "" {
		tablePrefix = "graph"
	}

	store := &SqliteGraph{
		db:          db,
		tablePrefix: tablePrefix,
	}

	if err := store.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// InitSchema creates the node and edge tables if they don't exist.
func (s *SqliteGraph) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s_nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			label TEXT NOT NULL,
			norm_label TEXT NOT NULL,
			properties TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_nodes_norm_label ON %[1]s_nodes (norm_label);

		CREATE TABLE IF NOT EXISTS %[1]s_edges (
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			relation TEXT NOT NULL,
			properties TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_edges_source ON %[1]s_edges (source);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_edges_target ON %[1]s_edges (target);
	`, s.tablePrefix)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqliteGraph) Close() error {
	return s.db.Close()
}

// AddNode stores a node; re-adding an ID overwrites it.
func (s *SqliteGraph) AddNode(ctx context.Context, node rag.GraphNode) error {
	if node.ID == "" {
		return fmt.Errorf("node ID is required")
	}

	propsJSON, err := json.Marshal(node.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s_nodes (id, type, label, norm_label, properties)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			label = excluded.label,
			norm_label = excluded.norm_label,
			properties = excluded.properties
	`, s.tablePrefix)

	_, err = s.db.ExecContext(ctx, query,
		node.ID,
		string(node.Type),
		node.Label,
		rag.NormalizeLabel(node.Label),
		string(propsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}
	return nil
}

// AddEdge stores a directed edge.
func (s *SqliteGraph) AddEdge(ctx context.Context, edge rag.GraphEdge) error {
	propsJSON, err := json.Marshal(edge.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s_edges (source, target, relation, properties)
		VALUES (?, ?, ?, ?)
	`, s.tablePrefix)

	_, err = s.db.ExecContext(ctx, query, edge.Source, edge.Target, edge.Relation, string(propsJSON))
	if err != nil {
		return fmt.Errorf("failed to save edge: %w", err)
	}
	return nil
}

// NodeByID returns the node with the given ID, or nil when absent.
func (s *SqliteGraph) NodeByID(ctx context.Context, id string) (*rag.GraphNode, error) {
	query := fmt.Sprintf(`
		SELECT id, type, label, properties FROM %s_nodes WHERE id = ?
	`, s.tablePrefix)

	node, err := scanNode(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load node: %w", err)
	}
	return node, nil
}

// NodesByLabel returns nodes whose label matches case-insensitively.
func (s *SqliteGraph) NodesByLabel(ctx context.Context, label string) ([]rag.GraphNode, error) {
	query := fmt.Sprintf(`
		SELECT id, type, label, properties FROM %s_nodes WHERE norm_label = ?
	`, s.tablePrefix)

	rows, err := s.db.QueryContext(ctx, query, rag.NormalizeLabel(label))
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []rag.GraphNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// Neighborhood expands breadth-first from the seeds, one frontier query per
// hop, following edges in both directions.
func (s *SqliteGraph) Neighborhood(ctx context.Context, seedIDs []string, hops, maxNodes int) ([]rag.GraphNode, []rag.GraphEdge, error) {
	if maxNodes <= 0 {
		maxNodes = 1000
	}

	visited := make(map[string]bool)
	var orderedIDs []string

	for _, id := range seedIDs {
		if !visited[id] && len(orderedIDs) < maxNodes {
			visited[id] = true
			orderedIDs = append(orderedIDs, id)
		}
	}

	frontier := append([]string(nil), orderedIDs...)
	for hop := 0; hop < hops && len(frontier) > 0 && len(orderedIDs) < maxNodes; hop++ {
		neighbors, err := s.neighborIDs(ctx, frontier)
		if err != nil {
			return nil, nil, err
		}

		var next []string
		for _, id := range neighbors {
			if !visited[id] && len(orderedIDs) < maxNodes {
				visited[id] = true
				orderedIDs = append(orderedIDs, id)
				next = append(next, id)
			}
		}
		frontier = next
	}

	nodes, err := s.nodesByIDs(ctx, orderedIDs)
	if err != nil {
		return nil, nil, err
	}

	edges, err := s.edgesWithin(ctx, visited)
	if err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}

// neighborIDs returns the union of targets and sources adjacent to ids.
func (s *SqliteGraph) neighborIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT target FROM %[1]s_edges WHERE source IN (%[2]s)
		UNION
		SELECT source FROM %[1]s_edges WHERE target IN (%[2]s)
	`, s.tablePrefix, placeholders)

	args := make([]any, 0, len(ids)*2)
	for i := 0; i < 2; i++ {
		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	defer rows.Close()

	var neighbors []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		neighbors = append(neighbors, id)
	}
	return neighbors, rows.Err()
}

func (s *SqliteGraph) nodesByIDs(ctx context.Context, ids []string) ([]rag.GraphNode, error) {
	var nodes []rag.GraphNode
	for _, id := range ids {
		node, err := s.NodeByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, *node)
		}
	}
	return nodes, nil
}

// edgesWithin returns edges whose endpoints are both in the visited set.
func (s *SqliteGraph) edgesWithin(ctx context.Context, visited map[string]bool) ([]rag.GraphEdge, error) {
	if len(visited) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT source, target, relation, properties FROM %s_edges
		WHERE source IN (%[2]s) AND target IN (%[2]s)
	`, s.tablePrefix, placeholders)

	args := make([]any, 0, len(ids)*2)
	for i := 0; i < 2; i++ {
		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []rag.GraphEdge
	for rows.Next() {
		var edge rag.GraphEdge
		var propsJSON sql.NullString
		if err := rows.Scan(&edge.Source, &edge.Target, &edge.Relation, &propsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if propsJSON.Valid && propsJSON.String != "" && propsJSON.String != "null" {
			if err := json.Unmarshal([]byte(propsJSON.String), &edge.Properties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal edge properties: %w", err)
			}
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*rag.GraphNode, error) {
	var node rag.GraphNode
	var nodeType string
	var propsJSON sql.NullString

	if err := row.Scan(&node.ID, &nodeType, &node.Label, &propsJSON); err != nil {
		return nil, err
	}

	node.Type = rag.GraphNodeType(nodeType)
	if propsJSON.Valid && propsJSON.String != "" && propsJSON.String != "null" {
		if err := json.Unmarshal([]byte(propsJSON.String), &node.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node properties: %w", err)
		}
	}
	return &node, nil
}
