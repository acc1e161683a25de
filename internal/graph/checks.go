package graph

import "fmt"

// Size bounds the oracle is asked to respect. They are advisory: results
// outside them are kept and reported.
const (
	MinViews, MaxViews                         = 3, 7
	MinViewConcepts, MaxViewConcepts           = 4, 8
	MinViewRelationships, MaxViewRelationships = 4, 10
	MinGroups, MaxGroups                       = 2, 5
	MinStories, MaxStories                     = 2, 5
	MinSteps, MaxSteps                         = 3, 7
	MinStepConcepts, MaxStepConcepts           = 2, 6
	MinStepRelationships, MaxStepRelationships = 1, 5
)

// Violation reports a count that fell outside its advisory bounds.
type Violation struct {
	Subject string `json:"subject"`
	Field   string `json:"field"`
	Count   int    `json:"count"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s has %d (want %d-%d)", v.Subject, v.Field, v.Count, v.Min, v.Max)
}

func bound(subject, field string, n, lo, hi int) []Violation {
	if n < lo || n > hi {
		return []Violation{{Subject: subject, Field: field, Count: n, Min: lo, Max: hi}}
	}
	return nil
}

// CheckViews checks the number of views and each view.
func CheckViews(modelID string, views []ModelView) []Violation {
	out := bound("model "+modelID, "views", len(views), MinViews, MaxViews)
	for _, v := range views {
		out = append(out, CheckView(v)...)
	}
	return out
}

// CheckView checks a view's concept and relationship counts and its groups.
func CheckView(v ModelView) []Violation {
	subject := "view " + v.ID
	var out []Violation
	out = append(out, bound(subject, "conceptIds", len(v.ConceptIDs), MinViewConcepts, MaxViewConcepts)...)
	out = append(out, bound(subject, "relationshipIds", len(v.RelationshipIDs), MinViewRelationships, MaxViewRelationships)...)
	out = append(out, CheckGroups(v)...)
	return out
}

// CheckGroups checks the layout groups of a view: 2-5 groups when present,
// each concept in at most one group, and only concepts of the view.
func CheckGroups(v ModelView) []Violation {
	if len(v.Groups) == 0 {
		return nil
	}
	subject := "view " + v.ID
	out := bound(subject, "groups", len(v.Groups), MinGroups, MaxGroups)

	inView := make(map[string]bool, len(v.ConceptIDs))
	for _, id := range v.ConceptIDs {
		inView[id] = true
	}
	seen := make(map[string]bool)
	overlap, outside := 0, 0
	for _, g := range v.Groups {
		for _, id := range g.ConceptIDs {
			if seen[id] {
				overlap++
			}
			seen[id] = true
			if !inView[id] {
				outside++
			}
		}
	}
	if overlap > 0 {
		out = append(out, Violation{Subject: subject, Field: "groups.shared", Count: overlap})
	}
	if outside > 0 {
		out = append(out, Violation{Subject: subject, Field: "groups.outside", Count: outside})
	}
	return out
}

// CheckStories checks the number of stories and each story.
func CheckStories(modelID string, stories []StoryView) []Violation {
	out := bound("model "+modelID, "storyViews", len(stories), MinStories, MaxStories)
	for _, s := range stories {
		out = append(out, CheckStory(s)...)
	}
	return out
}

// CheckStory checks the step count, step index contiguity and per-step
// concept and relationship counts.
func CheckStory(s StoryView) []Violation {
	subject := "story " + s.ID
	out := bound(subject, "steps", len(s.Steps), MinSteps, MaxSteps)
	for i, st := range s.Steps {
		stepSubject := fmt.Sprintf("%s step %d", subject, i)
		if st.Index != i {
			out = append(out, Violation{Subject: stepSubject, Field: "index", Count: st.Index, Min: i, Max: i})
		}
		out = append(out, bound(stepSubject, "conceptIds", len(st.ConceptIDs), MinStepConcepts, MaxStepConcepts)...)
		out = append(out, bound(stepSubject, "relationshipIds", len(st.RelationshipIDs), MinStepRelationships, MaxStepRelationships)...)
	}
	return out
}
