package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yliasolom/graph-search/log"
	"github.com/yliasolom/graph-search/news"
	"github.com/yliasolom/graph-search/provider"
)

// DefaultEntityTypes are the types the extraction prompt asks for.
var DefaultEntityTypes = []string{"person", "organization", "location", "event", "technology"}

// DefaultMaxGraphNodes bounds the subgraph a query expands.
const DefaultMaxGraphNodes = 50

const extractionPromptTemplate = `Extract the named entities and the relations between them from the article below.

Entity types: %s.

Respond with a JSON object:
{"entities": [{"name": "...", "type": "..."}], "relations": [{"source": "...", "target": "...", "relation": "..."}]}

Relation source and target must be entity names from the entities list.

Article:
%s`

// extractionResult is the schema the provider must return for one article.
type extractionResult struct {
	Entities []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"entities"`
	Relations []struct {
		Source   string `json:"source"`
		Target   string `json:"target"`
		Relation string `json:"relation"`
	} `json:"relations"`
}

// GraphEngine builds a knowledge graph from articles by provider-driven
// entity extraction and answers questions over bounded subgraphs.
type GraphEngine struct {
	provider    provider.Provider
	store       GraphStore
	entityTypes []string
	maxNodes    int
	report      BuildReport
	built       bool
}

// GraphAnswer is an answer with the subgraph that grounded it.
type GraphAnswer struct {
	Answer string
	Nodes  []GraphNode
	Edges  []GraphEdge
}

// GraphOption customizes a GraphEngine.
type GraphOption func(*GraphEngine)

// WithEntityTypes overrides the extraction entity types.
func WithEntityTypes(types []string) GraphOption {
	return func(g *GraphEngine) {
		g.entityTypes = types
	}
}

// WithMaxGraphNodes bounds subgraph expansion during queries.
func WithMaxGraphNodes(n int) GraphOption {
	return func(g *GraphEngine) {
		g.maxNodes = n
	}
}

// NewGraphEngine creates a graph engine over the given store.
func NewGraphEngine(p provider.Provider, store GraphStore, opts ...GraphOption) (*GraphEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store is required")
	}

	g := &GraphEngine{
		provider:    p,
		store:       store,
		entityTypes: DefaultEntityTypes,
		maxNodes:    DefaultMaxGraphNodes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NormalizeLabel is the case-insensitive identity key for entity labels.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Build extracts entities and relations from each article and writes the
// topology to the store. Entities with the same normalized label merge into
// one node keeping the first-seen casing. An article whose extraction fails
// is recorded in the report and skipped.
func (g *GraphEngine) Build(ctx context.Context, articles []news.Article) (*BuildReport, error) {
	// normLabel -> node ID, scoped to this build.
	entityIDs := make(map[string]string)

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := g.buildArticle(ctx, article, entityIDs); err != nil {
			log.Warn("skipping article %s: %v", article.ID, err)
			g.report.Skipped = append(g.report.Skipped, ItemError{ID: article.ID, Err: err})
			continue
		}
		g.report.Indexed++
	}

	g.built = true
	log.Info("graph built: %d articles indexed, %d skipped, %d entities",
		g.report.Indexed, len(g.report.Skipped), len(entityIDs))
	return &g.report, nil
}

func (g *GraphEngine) buildArticle(ctx context.Context, article news.Article, entityIDs map[string]string) error {
	var result extractionResult
	prompt := fmt.Sprintf(extractionPromptTemplate, strings.Join(g.entityTypes, ", "), article.Body)
	if err := g.provider.CompleteJSON(ctx, prompt, &result); err != nil {
		return fmt.Errorf("extract entities: %w", err)
	}

	articleNode := GraphNode{
		ID:    "article:" + article.ID,
		Type:  NodeArticle,
		Label: article.Title,
		Properties: map[string]string{
			"url":    article.URL,
			"source": article.Source,
		},
	}
	if err := g.store.AddNode(ctx, articleNode); err != nil {
		return fmt.Errorf("add article node: %w", err)
	}

	for _, entity := range result.Entities {
		norm := NormalizeLabel(entity.Name)
		if norm == "" {
			continue
		}

		nodeID, seen := entityIDs[norm]
		if !seen {
			nodeID = uuid.NewString()
			entityIDs[norm] = nodeID
			node := GraphNode{
				ID:    nodeID,
				Type:  NodeEntity,
				Label: strings.TrimSpace(entity.Name),
				Properties: map[string]string{
					"entity_type": strings.ToLower(strings.TrimSpace(entity.Type)),
				},
			}
			if err := g.store.AddNode(ctx, node); err != nil {
				return fmt.Errorf("add entity node %q: %w", entity.Name, err)
			}
		}

		edge := GraphEdge{Source: articleNode.ID, Target: nodeID, Relation: EdgeMentions}
		if err := g.store.AddEdge(ctx, edge); err != nil {
			return fmt.Errorf("add mention edge: %w", err)
		}
	}

	for _, rel := range result.Relations {
		sourceID, okSource := entityIDs[NormalizeLabel(rel.Source)]
		targetID, okTarget := entityIDs[NormalizeLabel(rel.Target)]
		relation := strings.TrimSpace(rel.Relation)
		// Relations referencing entities the extraction did not list are
		// dropped rather than creating dangling nodes.
		if !okSource || !okTarget || relation == "" {
			continue
		}

		edge := GraphEdge{Source: sourceID, Target: targetID, Relation: relation}
		if err := g.store.AddEdge(ctx, edge); err != nil {
			return fmt.Errorf("add relation edge: %w", err)
		}
	}

	return nil
}

// Built reports whether a build has completed.
func (g *GraphEngine) Built() bool {
	return g.built
}

// Report returns the build report.
func (g *GraphEngine) Report() BuildReport {
	return g.report
}

// Query seeds the graph with entities whose labels match question terms,
// expands a neighborhood of up to hops, and asks the provider to answer from
// the serialized subgraph.
func (g *GraphEngine) Query(ctx context.Context, question string, hops int) (*GraphAnswer, error) {
	if !g.built {
		return nil, ErrNotBuilt
	}
	if hops <= 0 {
		hops = 1
	}

	seedIDs, err := g.seedNodes(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(seedIDs) == 0 {
		return &GraphAnswer{Answer: "No entities in the graph match the question."}, nil
	}

	nodes, edges, err := g.store.Neighborhood(ctx, seedIDs, hops, g.maxNodes)
	if err != nil {
		return nil, fmt.Errorf("expand neighborhood: %w", err)
	}

	prompt := fmt.Sprintf(`Answer the question using only the knowledge graph below. If the graph does not contain the answer, say so.

Knowledge graph:
%s

Question: %s

Answer:`, serializeSubgraph(nodes, edges), question)

	answer, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &GraphAnswer{Answer: answer, Nodes: nodes, Edges: edges}, nil
}

// seedNodes matches question terms against entity labels, case-insensitively.
func (g *GraphEngine) seedNodes(ctx context.Context, question string) ([]string, error) {
	seen := make(map[string]bool)
	var seedIDs []string

	for _, term := range questionTerms(question) {
		nodes, err := g.store.NodesByLabel(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("lookup %q: %w", term, err)
		}
		for _, node := range nodes {
			if !seen[node.ID] {
				seen[node.ID] = true
				seedIDs = append(seedIDs, node.ID)
			}
		}
	}

	return seedIDs, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true,
	"what": true, "who": true, "how": true, "why": true, "when": true,
	"where": true, "which": true, "about": true, "are": true, "was": true,
	"were": true, "has": true, "have": true, "does": true, "did": true,
}

// questionTerms extracts candidate entity terms from a question.
func questionTerms(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	var terms []string
	for _, field := range fields {
		if len(field) < 3 || stopwords[field] {
			continue
		}
		terms = append(terms, field)
	}
	return terms
}

// serializeSubgraph renders nodes and edges as text the provider can reason
// over.
func serializeSubgraph(nodes []GraphNode, edges []GraphEdge) string {
	labels := make(map[string]string, len(nodes))
	var b strings.Builder

	b.WriteString("Entities:\n")
	for _, node := range nodes {
		labels[node.ID] = node.Label
		if node.Type == NodeEntity {
			fmt.Fprintf(&b, "- %s (%s)\n", node.Label, node.Properties["entity_type"])
		} else {
			fmt.Fprintf(&b, "- article: %s\n", node.Label)
		}
	}

	b.WriteString("Relations:\n")
	for _, edge := range edges {
		source, okSource := labels[edge.Source]
		target, okTarget := labels[edge.Target]
		if !okSource || !okTarget {
			continue
		}
		fmt.Fprintf(&b, "- %s -[%s]-> %s\n", source, edge.Relation, target)
	}

	return b.String()
}
