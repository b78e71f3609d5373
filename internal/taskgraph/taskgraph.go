// Package taskgraph models a plan's agent steps as a directed acyclic graph
// and produces the deterministic execution order the orchestrator walks.
package taskgraph

import (
	"errors"
	"fmt"

	"github.com/themis-legal/themis/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// Graph is a DAG of agent invocation nodes. Insertion order is retained and
// breaks topological ties, so two walks over the same node set always
// execute in the same sequence. The graph is immutable after planning; only
// the companion steps list carries execution status.
type Graph struct {
	nodes map[string]*models.Node
	// order records node IDs in insertion order.
	order []string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*models.Node)}
}

// AddNode registers a node. Duplicate IDs are rejected.
func (g *Graph) AddNode(node *models.Node) error {
	if node == nil || node.ID == "" {
		return errors.New("node must have an id")
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("duplicate node id %q", node.ID)
	}
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return nil
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Node returns the node for an ID, or nil if not found.
func (g *Graph) Node(id string) *models.Node {
	return g.nodes[id]
}

// Validate checks that every dependency references an existing node and
// that the graph is acyclic.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		for _, depID := range g.nodes[id].Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("node %s depends on unknown node %s", id, depID)
			}
		}
	}
	if g.hasCycle() {
		return ErrCycleDetected
	}
	return nil
}

// hasCycle detects a back edge using depth-first search with coloring.
func (g *Graph) hasCycle() bool {
	// Color states: 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.nodes[id].Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				continue
			}
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// TopologicalOrder returns the nodes in an order where every dependency
// comes before the nodes that depend on it. Ties are broken by insertion
// order, which keeps recorded step order and resumability deterministic.
func (g *Graph) TopologicalOrder() ([]*models.Node, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]*models.Node, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		for _, depID := range g.nodes[id].Dependencies {
			visit(depID)
		}

		result = append(result, g.nodes[id])
	}

	for _, id := range g.order {
		visit(id)
	}

	return result, nil
}

// ToDoc serializes the graph to its plain-data form. The round trip through
// FromDoc preserves the node set, edges, and insertion order exactly,
// because a plan persists its graph as data and reconstructs it on every
// execute call.
func (g *Graph) ToDoc() *models.GraphDoc {
	doc := &models.GraphDoc{Nodes: make([]*models.Node, 0, len(g.order))}
	for _, id := range g.order {
		doc.Nodes = append(doc.Nodes, g.nodes[id].Clone())
	}
	return doc
}

// FromDoc reconstructs a graph from its serialized form.
func FromDoc(doc *models.GraphDoc) (*Graph, error) {
	g := New()
	if doc == nil {
		return g, nil
	}
	for _, node := range doc.Nodes {
		if err := g.AddNode(node.Clone()); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// ToLinearSteps projects the graph onto a steps list in topological order.
// Each step starts pending with the node's dependency and artifact metadata
// but no outcome.
func (g *Graph) ToLinearSteps() ([]*models.Step, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	steps := make([]*models.Step, 0, len(order))
	for _, node := range order {
		steps = append(steps, StepFromNode(node))
	}
	return steps, nil
}

// FromLinearSteps rebuilds a graph from a steps list. Used for plans
// persisted before graphs were stored alongside steps.
func FromLinearSteps(steps []*models.Step) (*Graph, error) {
	g := New()
	for _, step := range steps {
		node := &models.Node{
			ID:                 step.ID,
			Agent:              step.Agent,
			Dependencies:       append([]string(nil), step.Dependencies...),
			ExpectedArtifacts:  append([]models.ArtifactSpec(nil), step.ExpectedArtifacts...),
			Phase:              step.Phase,
			RequiredConnectors: append([]string(nil), step.RequiredConnectors...),
			SupportingAgents:   append([]models.SupportSpec(nil), step.SupportingAgents...),
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// StepFromNode materializes a pending step carrying the node's metadata.
func StepFromNode(node *models.Node) *models.Step {
	return &models.Step{
		ID:                 node.ID,
		Agent:              node.Agent,
		Dependencies:       append([]string(nil), node.Dependencies...),
		ExpectedArtifacts:  append([]models.ArtifactSpec(nil), node.ExpectedArtifacts...),
		Phase:              node.Phase,
		RequiredConnectors: append([]string(nil), node.RequiredConnectors...),
		SupportingAgents:   append([]models.SupportSpec(nil), node.SupportingAgents...),
		Status:             models.StatusPending,
	}
}
