// Package connectors exposes external data sources to agents. A connector
// is a named provider of reference material (document templates, case law
// digests) that a graph node can declare via required_connectors; the
// orchestrator resolves the declared names and merges the payloads into
// the agent input under "connectors".
package connectors

import (
	"log"
	"sort"
	"sync"

	"github.com/themis-legal/themis/pkg/models"
)

// Connector supplies a payload for agents that request it by name.
type Connector interface {
	// Info describes the connector for plan metadata.
	Info() models.ConnectorInfo
	// Payload returns the connector's data. Implementations return fresh
	// values; callers own the result.
	Payload() map[string]any
}

// Registry holds the connectors available to an orchestrator instance.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
	order      []string
}

// NewRegistry returns a registry preloaded with the built-in connectors.
func NewRegistry() *Registry {
	r := &Registry{connectors: make(map[string]Connector)}
	r.Register(&templateConnector{})
	r.Register(&caseLawConnector{})
	return r
}

// NewEmptyRegistry returns a registry with no connectors registered.
func NewEmptyRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds or replaces a connector under its declared name.
func (r *Registry) Register(c Connector) {
	name := c.Info().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[name]; !exists {
		r.order = append(r.order, name)
	}
	r.connectors[name] = c
}

// Catalogue lists registered connectors in registration order.
func (r *Registry) Catalogue() []models.ConnectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ConnectorInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.connectors[name].Info())
	}
	return out
}

// Resolve returns payloads for the requested connector names. Unknown
// names are skipped with a log line rather than failing the step; an
// agent that strictly needs a connector reports the gap in its output.
func (r *Registry) Resolve(names []string) map[string]any {
	if len(names) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any)
	for _, name := range names {
		c, ok := r.connectors[name]
		if !ok {
			log.Printf("[connectors] no connector registered for %q", name)
			continue
		}
		out[name] = c.Payload()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// templateConnector serves skeleton outlines for the drafting agent.
type templateConnector struct{}

func (t *templateConnector) Info() models.ConnectorInfo {
	return models.ConnectorInfo{
		Name:        "document_templates",
		Description: "Skeleton outlines for supported document types",
		Kind:        "reference",
	}
}

func (t *templateConnector) Payload() map[string]any {
	types := make([]string, 0, len(documentTemplates))
	for dt := range documentTemplates {
		types = append(types, dt)
	}
	sort.Strings(types)
	templates := make(map[string]any, len(documentTemplates))
	for dt, sections := range documentTemplates {
		templates[dt] = map[string]any{"sections": append([]string(nil), sections...)}
	}
	return map[string]any{
		"document_types": types,
		"templates":      templates,
	}
}

var documentTemplates = map[string][]string{
	"complaint":     {"caption", "parties", "jurisdiction", "factual_allegations", "causes_of_action", "prayer_for_relief"},
	"motion":        {"caption", "introduction", "statement_of_facts", "argument", "conclusion"},
	"memorandum":    {"question_presented", "brief_answer", "facts", "discussion", "conclusion"},
	"demand_letter": {"introduction", "factual_background", "legal_basis", "demand", "deadline"},
	"brief":         {"statement_of_issues", "statement_of_the_case", "argument", "conclusion"},
	"answer":        {"caption", "admissions_and_denials", "affirmative_defenses", "prayer"},
}

// caseLawConnector serves a small digest of citable authority.
type caseLawConnector struct{}

func (c *caseLawConnector) Info() models.ConnectorInfo {
	return models.ConnectorInfo{
		Name:        "case_law",
		Description: "Digest of commonly cited authority by practice area",
		Kind:        "reference",
	}
}

func (c *caseLawConnector) Payload() map[string]any {
	return map[string]any{
		"digests": map[string]any{
			"contract": []any{
				map[string]any{"citation": "Hadley v. Baxendale, 9 Ex. 341 (1854)", "principle": "consequential damages must be foreseeable"},
				map[string]any{"citation": "Lucy v. Zehmer, 196 Va. 493 (1954)", "principle": "objective theory of contract formation"},
			},
			"tort": []any{
				map[string]any{"citation": "Palsgraf v. Long Island R.R., 248 N.Y. 339 (1928)", "principle": "duty limited by foreseeable plaintiffs"},
			},
			"procedure": []any{
				map[string]any{"citation": "Ashcroft v. Iqbal, 556 U.S. 662 (2009)", "principle": "pleading plausibility standard"},
			},
		},
	}
}
