package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/oracle"
)

type viewsResponse struct {
	Views []graph.ModelView `json:"views"`
}

func (r *viewsResponse) Validate() error {
	if r.Views == nil {
		return errors.New(`missing "views"`)
	}
	return nil
}

// modelIndex is the reduced form of a model sent to view and story
// synthesis: ids, labels and categories only.
type modelIndex struct {
	Title         string
	Concepts      []conceptSummary
	Relationships []relationshipSummary
}

type relationshipSummary struct {
	ID       string
	From     string
	To       string
	Phrase   string
	Category graph.RelationshipCategory
}

func indexOf(m graph.Model) modelIndex {
	idx := modelIndex{Title: m.Title}
	for _, c := range m.Concepts {
		idx.Concepts = append(idx.Concepts, conceptSummary{ID: c.ID, Label: c.Label, Category: c.Category})
	}
	for _, r := range m.Relationships {
		idx.Relationships = append(idx.Relationships, relationshipSummary{
			ID: r.ID, From: r.From, To: r.To, Phrase: r.Phrase, Category: r.Category,
		})
	}
	return idx
}

// SynthesizeViews asks for curated diagram views of m. Views are kept as
// returned; size bounds are reported as violations, not enforced. On error
// the returned list is empty.
func SynthesizeViews(ctx context.Context, o oracle.Oracle, m graph.Model) ([]graph.ModelView, []graph.Violation, error) {
	user, err := render(viewsTmpl, indexOf(m))
	if err != nil {
		return []graph.ModelView{}, nil, err
	}
	resp, err := oracle.AskJSON[viewsResponse](ctx, o, StageViews, m.ID, systemPrompt, user)
	if err != nil {
		return []graph.ModelView{}, nil, fmt.Errorf("views for %s: %w", m.ID, err)
	}

	views := resp.Views
	for i := range views {
		if strings.TrimSpace(views[i].ID) == "" {
			views[i].ID = fmt.Sprintf("view-%d", i+1)
		}
		if views[i].ConceptIDs == nil {
			views[i].ConceptIDs = []string{}
		}
		if views[i].RelationshipIDs == nil {
			views[i].RelationshipIDs = []string{}
		}
		views[i].Direction = normalizeDirection(views[i].Direction)
		for j := range views[i].Groups {
			if views[i].Groups[j].ID == "" {
				views[i].Groups[j].ID = fmt.Sprintf("%s-group-%d", views[i].ID, j+1)
			}
		}
	}
	return views, graph.CheckViews(m.ID, views), nil
}

func normalizeDirection(d string) string {
	switch strings.ToUpper(strings.TrimSpace(d)) {
	case "LR", "LEFT-TO-RIGHT":
		return "LR"
	case "TB", "TD", "TOP-TO-BOTTOM":
		return "TB"
	}
	return ""
}
