package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/oracle"
)

type storiesResponse struct {
	Stories []graph.StoryView `json:"stories"`
}

func (r *storiesResponse) Validate() error {
	if r.Stories == nil {
		return errors.New(`missing "stories"`)
	}
	return nil
}

// SynthesizeStories asks for narrative story views of m. Step indexes are
// normalized to the step's position after bounds and index mismatches are
// recorded as violations. On error the returned list is empty.
func SynthesizeStories(ctx context.Context, o oracle.Oracle, m graph.Model) ([]graph.StoryView, []graph.Violation, error) {
	user, err := render(storiesTmpl, indexOf(m))
	if err != nil {
		return []graph.StoryView{}, nil, err
	}
	resp, err := oracle.AskJSON[storiesResponse](ctx, o, StageStories, m.ID, systemPrompt, user)
	if err != nil {
		return []graph.StoryView{}, nil, fmt.Errorf("stories for %s: %w", m.ID, err)
	}

	stories := resp.Stories
	for i := range stories {
		if strings.TrimSpace(stories[i].ID) == "" {
			stories[i].ID = fmt.Sprintf("story-%d", i+1)
		}
		if stories[i].Steps == nil {
			stories[i].Steps = []graph.StoryStep{}
		}
	}
	violations := graph.CheckStories(m.ID, stories)

	for i := range stories {
		for j := range stories[i].Steps {
			st := &stories[i].Steps[j]
			st.Index = j
			if strings.TrimSpace(st.ID) == "" {
				st.ID = fmt.Sprintf("%s-step-%d", stories[i].ID, j+1)
			}
			if st.ConceptIDs == nil {
				st.ConceptIDs = []string{}
			}
			if st.RelationshipIDs == nil {
				st.RelationshipIDs = []string{}
			}
		}
	}
	return stories, violations, nil
}
