package graph

import "sort"

// DanglingReport counts ids removed by PruneDangling, keyed by location
// ("relationships", "rules", "lifecycles", "views", "groups", "stories").
type DanglingReport map[string]int

// Total returns the number of removed ids across all locations.
func (r DanglingReport) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Locations returns the locations with removals, sorted.
func (r DanglingReport) Locations() []string {
	var out []string
	for k, c := range r {
		if c > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Add merges other into r.
func (r DanglingReport) Add(other DanglingReport) {
	for k, c := range other {
		r[k] += c
	}
}

// PruneDangling returns a copy of m in which every id that does not resolve
// inside the model has been removed: relationships with an unknown endpoint
// are dropped, and unknown concept or relationship ids are filtered out of
// rules, lifecycles, views, view groups and story steps. A lifecycle whose
// subject concept is unknown is dropped. Concepts are never removed.
func PruneDangling(m Model) (Model, DanglingReport) {
	report := DanglingReport{}
	concepts := m.ConceptIndex()
	hasConcept := func(id string) bool {
		_, ok := concepts[id]
		return ok
	}

	out := m
	out.Relationships = make([]Relationship, 0, len(m.Relationships))
	for _, r := range m.Relationships {
		if hasConcept(r.From) && hasConcept(r.To) {
			out.Relationships = append(out.Relationships, r)
			continue
		}
		report["relationships"]++
	}
	rels := out.RelationshipIDs()
	hasRel := func(id string) bool { return rels[id] }

	filter := func(ids []string, keep func(string) bool, loc string) []string {
		if ids == nil {
			return nil
		}
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if keep(id) {
				kept = append(kept, id)
			} else {
				report[loc]++
			}
		}
		return kept
	}
	blank := func(id string, keep func(string) bool, loc string) string {
		if id == "" || keep(id) {
			return id
		}
		report[loc]++
		return ""
	}

	out.Rules = make([]Rule, len(m.Rules))
	for i, r := range m.Rules {
		r.ConceptIDs = filter(r.ConceptIDs, hasConcept, "rules")
		out.Rules[i] = r
	}

	out.Lifecycles = make([]Lifecycle, 0, len(m.Lifecycles))
	for _, l := range m.Lifecycles {
		if !hasConcept(l.ConceptID) {
			report["lifecycles"]++
			continue
		}
		l.StateIDs = filter(l.StateIDs, hasConcept, "lifecycles")
		l.TransitionIDs = filter(l.TransitionIDs, hasRel, "lifecycles")
		l.Initial = blank(l.Initial, hasConcept, "lifecycles")
		l.Terminal = blank(l.Terminal, hasConcept, "lifecycles")
		out.Lifecycles = append(out.Lifecycles, l)
	}

	out.Views = make([]ModelView, len(m.Views))
	for i, v := range m.Views {
		v.ConceptIDs = filter(v.ConceptIDs, hasConcept, "views")
		v.RelationshipIDs = filter(v.RelationshipIDs, hasRel, "views")
		if v.Groups != nil {
			groups := make([]ViewGroup, len(v.Groups))
			for j, g := range v.Groups {
				g.ConceptIDs = filter(g.ConceptIDs, hasConcept, "groups")
				groups[j] = g
			}
			v.Groups = groups
		}
		out.Views[i] = v
	}

	out.StoryViews = make([]StoryView, len(m.StoryViews))
	for i, s := range m.StoryViews {
		s.FocusConceptID = blank(s.FocusConceptID, hasConcept, "stories")
		steps := make([]StoryStep, len(s.Steps))
		for j, st := range s.Steps {
			st.ConceptIDs = filter(st.ConceptIDs, hasConcept, "stories")
			st.RelationshipIDs = filter(st.RelationshipIDs, hasRel, "stories")
			st.PrimaryConceptIDs = filter(st.PrimaryConceptIDs, hasConcept, "stories")
			st.PrimaryRelationshipIDs = filter(st.PrimaryRelationshipIDs, hasRel, "stories")
			steps[j] = st
		}
		s.Steps = steps
		out.StoryViews[i] = s
	}

	return out, report
}
