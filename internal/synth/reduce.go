package synth

import (
	"fmt"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
)

// EnrichmentResult is the oracle's enrichment payload for one concept.
type EnrichmentResult struct {
	// ConceptID is the concept being enriched; it is set by the caller,
	// not decoded.
	ConceptID     string               `json:"-"`
	Description   string               `json:"description"`
	Aliases       []string             `json:"aliases"`
	Notes         string               `json:"notes"`
	Relationships []graph.Relationship `json:"relationships"`
	Rules         []graph.Rule         `json:"rules"`
	Lifecycles    []graph.Lifecycle    `json:"lifecycles"`
}

// Validate rejects relationships without a target and rules without content.
func (r *EnrichmentResult) Validate() error {
	for i, rel := range r.Relationships {
		if strings.TrimSpace(rel.To) == "" {
			return fmt.Errorf("relationship %d has no target", i)
		}
	}
	for i, rule := range r.Rules {
		if strings.TrimSpace(rule.Text) == "" && strings.TrimSpace(rule.Title) == "" {
			return fmt.Errorf("rule %d has neither title nor text", i)
		}
	}
	return nil
}

// Accumulator is the per-model state threaded through Enrichment. It is a
// value: Reduce returns a new Accumulator and never mutates its input.
type Accumulator struct {
	Concepts      []graph.Concept
	Relationships []graph.Relationship
	Rules         []graph.Rule
	Lifecycles    []graph.Lifecycle
	// Dangling counts oracle-supplied references dropped because they did
	// not resolve to a concept or relationship of the model.
	Dangling int
	// Renamed counts relationship and rule ids renamed to avoid collisions.
	Renamed int

	// Read-only lookups shared between accumulator values; concepts are
	// never added during Enrichment.
	byID    map[string]int
	byLabel map[string]string
	relIDs  map[string]bool
	ruleIDs map[string]bool
}

// NewAccumulator seeds an accumulator from a skeleton model.
func NewAccumulator(m graph.Model) Accumulator {
	acc := Accumulator{
		Concepts:      append([]graph.Concept(nil), m.Concepts...),
		Relationships: append([]graph.Relationship(nil), m.Relationships...),
		Rules:         append([]graph.Rule(nil), m.Rules...),
		Lifecycles:    append([]graph.Lifecycle(nil), m.Lifecycles...),
		byID:          make(map[string]int, len(m.Concepts)),
		byLabel:       make(map[string]string, len(m.Concepts)),
	}
	for i, c := range m.Concepts {
		if _, dup := acc.byID[c.ID]; !dup {
			acc.byID[c.ID] = i
		}
		key := strings.ToLower(strings.TrimSpace(c.Label))
		if _, dup := acc.byLabel[key]; key != "" && !dup {
			acc.byLabel[key] = c.ID
		}
	}
	acc.relIDs = idSet(acc.Relationships, func(r graph.Relationship) string { return r.ID })
	acc.ruleIDs = idSet(acc.Rules, func(r graph.Rule) string { return r.ID })
	return acc
}

func idSet[T any](items []T, id func(T) string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[id(it)] = true
	}
	return set
}

// Apply writes the accumulated state back into m.
func (acc Accumulator) Apply(m graph.Model) graph.Model {
	m.Concepts = nonNil(acc.Concepts)
	m.Relationships = nonNil(acc.Relationships)
	m.Rules = nonNil(acc.Rules)
	m.Lifecycles = nonNil(acc.Lifecycles)
	return m
}

// ResolveConcept maps an id or a case-insensitive label to a concept id.
func (acc Accumulator) ResolveConcept(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if _, ok := acc.byID[ref]; ok {
		return ref, true
	}
	if id, ok := acc.byLabel[strings.ToLower(ref)]; ok {
		return id, true
	}
	return "", false
}

// WithoutEvidence returns acc with the evidence of one concept stripped.
// It is the outcome for a skipped or failed concept.
func (acc Accumulator) WithoutEvidence(conceptID string) Accumulator {
	i, ok := acc.byID[conceptID]
	if !ok {
		return acc
	}
	acc.Concepts = append([]graph.Concept(nil), acc.Concepts...)
	acc.Concepts[i].Evidence = nil
	return acc
}

// Reduce merges one enrichment result into acc and returns the new state.
// Relationship endpoints resolve by id or label (an empty endpoint means the
// enriched concept); relationships that cannot be resolved are dropped and
// counted as dangling. Relationship and rule ids that collide with ids
// already accumulated are renamed <id>-2, <id>-3, ... and lifecycle
// transitions are rewritten to match. Existing entries are never removed.
func Reduce(acc Accumulator, res EnrichmentResult) Accumulator {
	next := acc
	next.Concepts = append([]graph.Concept(nil), acc.Concepts...)
	next.Relationships = append([]graph.Relationship(nil), acc.Relationships...)
	next.Rules = append([]graph.Rule(nil), acc.Rules...)
	next.Lifecycles = append([]graph.Lifecycle(nil), acc.Lifecycles...)
	next.relIDs = copySet(acc.relIDs)
	next.ruleIDs = copySet(acc.ruleIDs)

	if i, ok := acc.byID[res.ConceptID]; ok {
		next.Concepts[i] = MergeConcept(acc.Concepts[i], res)
	}

	endpoint := func(ref string) (string, bool) {
		if strings.TrimSpace(ref) == "" {
			ref = res.ConceptID
		}
		return next.ResolveConcept(ref)
	}

	renames := make(map[string]string)
	for _, r := range res.Relationships {
		from, okFrom := endpoint(r.From)
		to, okTo := endpoint(r.To)
		if !okFrom || !okTo {
			next.Dangling++
			continue
		}
		orig := strings.TrimSpace(r.ID)
		if orig == "" {
			orig = "rel-" + from + "-" + to
		}
		r.ID, r.From, r.To = next.uniqueID(next.relIDs, orig), from, to
		if r.Category == "" {
			r.Category = graph.RelOther
		}
		if _, seen := renames[orig]; !seen {
			renames[orig] = r.ID
		}
		next.relIDs[r.ID] = true
		next.Relationships = append(next.Relationships, r)
	}

	for n, rule := range res.Rules {
		orig := strings.TrimSpace(rule.ID)
		if orig == "" {
			orig = fmt.Sprintf("rule-%s-%d", res.ConceptID, n+1)
		}
		rule.ID = next.uniqueID(next.ruleIDs, orig)
		next.ruleIDs[rule.ID] = true
		if rule.Kind == "" {
			rule.Kind = graph.RuleConstraint
		}
		if rule.Title == "" {
			rule.Title = rule.Text
		}
		if len(rule.ConceptIDs) == 0 {
			rule.ConceptIDs = []string{res.ConceptID}
		} else {
			rule.ConceptIDs = next.resolveAll(rule.ConceptIDs, endpoint)
		}
		next.Rules = append(next.Rules, rule)
	}

	for _, l := range res.Lifecycles {
		subject, ok := endpoint(l.ConceptID)
		if !ok {
			next.Dangling++
			continue
		}
		l.ConceptID = subject
		l.StateIDs = next.resolveAll(l.StateIDs, next.ResolveConcept)
		transitions := make([]string, 0, len(l.TransitionIDs))
		for _, t := range l.TransitionIDs {
			if renamed, ok := renames[t]; ok {
				t = renamed
			}
			if next.relIDs[t] {
				transitions = append(transitions, t)
			} else {
				next.Dangling++
			}
		}
		l.TransitionIDs = transitions
		l.Initial = next.resolveOne(l.Initial)
		l.Terminal = next.resolveOne(l.Terminal)
		next.Lifecycles = append(next.Lifecycles, l)
	}
	return next
}

// MergeConcept folds an enrichment result into c. The id and label are
// preserved, aliases are unioned, notes are appended and evidence is
// stripped.
func MergeConcept(c graph.Concept, res EnrichmentResult) graph.Concept {
	c.Aliases = appendUnique(append([]string{}, c.Aliases...), res.Aliases...)
	if d := strings.TrimSpace(res.Description); d != "" {
		c.Description = d
	}
	if n := strings.TrimSpace(res.Notes); n != "" {
		if c.Notes != "" {
			c.Notes += "\n\n" + n
		} else {
			c.Notes = n
		}
	}
	c.Evidence = nil
	return c
}

// uniqueID is called on next, whose Renamed counter it bumps.
func (acc *Accumulator) uniqueID(taken map[string]bool, id string) string {
	free := nextFree(taken, id)
	if free != id {
		acc.Renamed++
	}
	return free
}

func (acc *Accumulator) resolveAll(refs []string, resolve func(string) (string, bool)) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, ok := resolve(ref)
		if !ok {
			acc.Dangling++
			continue
		}
		out = appendUnique(out, id)
	}
	return out
}

func (acc *Accumulator) resolveOne(ref string) string {
	if ref == "" {
		return ""
	}
	id, ok := acc.ResolveConcept(ref)
	if !ok {
		acc.Dangling++
		return ""
	}
	return id
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
