// Package graph defines the concept model produced by the synthesis pipeline:
// a Project of Models, each owning Concepts, Relationships, Rules,
// Lifecycles, curated Views and narrative StoryViews.
package graph

import (
	"encoding/json"
	"strings"
	"time"
)

// SchemaVersion is the version stamped on persisted artifacts.
const SchemaVersion = "1.0.0"

// Project is the top-level persisted artifact for one analyzed repository.
type Project struct {
	SchemaVersion string    `json:"schemaVersion"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Models        []Model   `json:"models"`
}

// Model is one coherent subsystem. Concept and relationship ids are unique
// only within a Model.
type Model struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Concepts      []Concept      `json:"concepts"`
	Relationships []Relationship `json:"relationships"`
	Rules         []Rule         `json:"rules"`
	Lifecycles    []Lifecycle    `json:"lifecycles"`
	Views         []ModelView    `json:"views"`
	StoryViews    []StoryView    `json:"storyViews"`
}

// Concept is a domain-level node.
type Concept struct {
	ID             string        `json:"id"`
	Label          string        `json:"label"`
	Category       Category      `json:"category"`
	Description    string        `json:"description"`
	Aliases        []string      `json:"aliases"`
	ExternalRefs   []ExternalRef `json:"externalRefs,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	BoundedContext string        `json:"boundedContext,omitempty"`
	// Evidence only lives between Discovery and Enrichment.
	Evidence []Evidence `json:"evidence,omitempty"`
}

// ExternalRef points at a concept in another Model.
type ExternalRef struct {
	ModelID   string `json:"modelId"`
	ConceptID string `json:"conceptId"`
}

// Evidence is a code reference grounding a discovered concept.
type Evidence struct {
	File   string `json:"file"`
	Symbol string `json:"symbol,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// Relationship is a directed, labeled edge between two concepts.
type Relationship struct {
	ID          string               `json:"id"`
	From        string               `json:"from"`
	To          string               `json:"to"`
	Phrase      string               `json:"phrase"`
	Category    RelationshipCategory `json:"category"`
	Description string               `json:"description"`
}

// Rule is a business rule governing zero or more concepts.
type Rule struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Kind       RuleKind `json:"kind"`
	ConceptIDs []string `json:"conceptIds,omitempty"`
}

// Lifecycle describes the states a concept moves through.
type Lifecycle struct {
	ConceptID     string   `json:"conceptId"`
	StateIDs      []string `json:"stateIds"`
	TransitionIDs []string `json:"transitionIds"`
	Initial       string   `json:"initial,omitempty"`
	Terminal      string   `json:"terminal,omitempty"`
}

// ModelView is a curated, size-bounded subgraph for one diagram.
type ModelView struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	ConceptIDs      []string    `json:"conceptIds"`
	RelationshipIDs []string    `json:"relationshipIds"`
	Groups          []ViewGroup `json:"groups,omitempty"`
	Direction       string      `json:"direction,omitempty"` // "LR" or "TB"
}

// ViewGroup is a layout group owning a disjoint subset of a view's concepts.
type ViewGroup struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	ConceptIDs []string `json:"conceptIds"`
}

// StoryView is an ordered narrative over the model.
type StoryView struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Tags           []string    `json:"tags,omitempty"`
	FocusConceptID string      `json:"focusConceptId,omitempty"`
	Steps          []StoryStep `json:"steps"`
}

// StoryStep is one step of a StoryView. Index equals the step's position.
type StoryStep struct {
	ID                     string   `json:"id"`
	Index                  int      `json:"index"`
	Title                  string   `json:"title"`
	Narrative              string   `json:"narrative"`
	ConceptIDs             []string `json:"conceptIds"`
	RelationshipIDs        []string `json:"relationshipIds"`
	PrimaryConceptIDs      []string `json:"primaryConceptIds,omitempty"`
	PrimaryRelationshipIDs []string `json:"primaryRelationshipIds,omitempty"`
}

// ConceptDoc is a concept in the flat-document shape.
type ConceptDoc struct {
	Name           string   `json:"name" yaml:"name"`
	BoundedContext string   `json:"boundedContext" yaml:"bounded_context"`
	Summary        string   `json:"summary" yaml:"summary"`
	Definition     string   `json:"definition" yaml:"-"`
	Structure      string   `json:"structure" yaml:"-"`
	Lifecycle      string   `json:"lifecycle" yaml:"-"`
	Invariants     []string `json:"invariants" yaml:"-"`
	Commands       []string `json:"commands" yaml:"-"`
	Events         []string `json:"events" yaml:"-"`
	Implementation []string `json:"implementation" yaml:"-"`
}

// ConceptIndex returns the position of each concept id.
func (m *Model) ConceptIndex() map[string]int {
	idx := make(map[string]int, len(m.Concepts))
	for i, c := range m.Concepts {
		if _, dup := idx[c.ID]; !dup {
			idx[c.ID] = i
		}
	}
	return idx
}

// RelationshipIDs returns the set of relationship ids in the model.
func (m *Model) RelationshipIDs() map[string]bool {
	ids := make(map[string]bool, len(m.Relationships))
	for _, r := range m.Relationships {
		ids[r.ID] = true
	}
	return ids
}

// Concept returns the concept with the given id.
func (m *Model) Concept(id string) (Concept, bool) {
	for _, c := range m.Concepts {
		if c.ID == id {
			return c, true
		}
	}
	return Concept{}, false
}

// Category classifies a concept.
type Category string

// Concept categories.
const (
	CategoryThing    Category = "thing"
	CategoryActivity Category = "activity"
	CategoryRole     Category = "role"
	CategoryState    Category = "state"
	CategoryEvent    Category = "event"
	CategoryPlace    Category = "place"
	CategoryTime     Category = "time"
	CategoryOther    Category = "other"
)

var categories = map[string]Category{
	"thing": CategoryThing, "activity": CategoryActivity, "role": CategoryRole,
	"state": CategoryState, "event": CategoryEvent, "place": CategoryPlace,
	"time": CategoryTime, "other": CategoryOther,
}

// ParseCategory maps s to a Category; unknown values become CategoryOther.
func ParseCategory(s string) Category {
	if c, ok := categories[normalizeEnum(s)]; ok {
		return c
	}
	return CategoryOther
}

// UnmarshalJSON parses a category leniently.
func (c *Category) UnmarshalJSON(data []byte) error {
	s, err := enumString(data)
	if err != nil {
		return err
	}
	*c = ParseCategory(s)
	return nil
}

// RelationshipCategory classifies a relationship.
type RelationshipCategory string

// Relationship categories.
const (
	RelIsA        RelationshipCategory = "is_a"
	RelPartOf     RelationshipCategory = "part_of"
	RelCauses     RelationshipCategory = "causes"
	RelEnables    RelationshipCategory = "enables"
	RelPrevents   RelationshipCategory = "prevents"
	RelPrecedes   RelationshipCategory = "precedes"
	RelUses       RelationshipCategory = "uses"
	RelRepresents RelationshipCategory = "represents"
	RelOther      RelationshipCategory = "other"
)

var relationshipCategories = map[string]RelationshipCategory{
	"is_a": RelIsA, "part_of": RelPartOf, "causes": RelCauses, "enables": RelEnables,
	"prevents": RelPrevents, "precedes": RelPrecedes, "uses": RelUses,
	"represents": RelRepresents, "other": RelOther,
}

// ParseRelationshipCategory maps s to a RelationshipCategory; unknown values become RelOther.
func ParseRelationshipCategory(s string) RelationshipCategory {
	if c, ok := relationshipCategories[normalizeEnum(s)]; ok {
		return c
	}
	return RelOther
}

// UnmarshalJSON parses a relationship category leniently.
func (c *RelationshipCategory) UnmarshalJSON(data []byte) error {
	s, err := enumString(data)
	if err != nil {
		return err
	}
	*c = ParseRelationshipCategory(s)
	return nil
}

// RuleKind classifies a rule.
type RuleKind string

// Rule kinds.
const (
	RuleInvariant  RuleKind = "invariant"
	RuleConstraint RuleKind = "constraint"
	RulePolicy     RuleKind = "policy"
	RuleAssumption RuleKind = "assumption"
)

// ParseRuleKind maps s to a RuleKind; unknown values become RuleConstraint.
func ParseRuleKind(s string) RuleKind {
	switch k := RuleKind(normalizeEnum(s)); k {
	case RuleInvariant, RuleConstraint, RulePolicy, RuleAssumption:
		return k
	}
	return RuleConstraint
}

// UnmarshalJSON parses a rule kind leniently.
func (k *RuleKind) UnmarshalJSON(data []byte) error {
	s, err := enumString(data)
	if err != nil {
		return err
	}
	*k = ParseRuleKind(s)
	return nil
}

// normalizeEnum lowercases s and folds spaces and dashes to underscores
// ("Part Of" -> "part_of").
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// enumString accepts a JSON string or null.
func enumString(data []byte) (string, error) {
	if string(data) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	return s, nil
}
