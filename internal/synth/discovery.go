package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/oracle"
	"github.com/julianshen/conceptmap/internal/parser"
)

// DefaultMaxDeclarations caps the declarations listed in discovery prompts.
const DefaultMaxDeclarations = 400

// DiscoverInput is the evidence handed to Discovery.
type DiscoverInput struct {
	Root            string
	Declarations    []parser.Declaration
	MaxDeclarations int
}

func (in DiscoverInput) promptData() map[string]any {
	limit := in.MaxDeclarations
	if limit <= 0 {
		limit = DefaultMaxDeclarations
	}
	decls := in.Declarations
	truncated := len(decls) > limit
	if truncated {
		decls = decls[:limit]
	}
	return map[string]any{
		"Root":         in.Root,
		"Declarations": decls,
		"Truncated":    truncated,
		"Total":        len(in.Declarations),
	}
}

type discoveryResponse struct {
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Models      []discoveredModel `json:"models"`
}

type discoveredModel struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Concepts    []graph.Concept `json:"concepts"`
}

// Validate rejects responses that do not have the skeleton shape.
func (r *discoveryResponse) Validate() error {
	if r.Models == nil {
		return errors.New(`missing "models"`)
	}
	for i, m := range r.Models {
		for j, c := range m.Concepts {
			if strings.TrimSpace(c.ID) == "" && strings.TrimSpace(c.Label) == "" {
				return fmt.Errorf("model %d concept %d has neither id nor label", i, j)
			}
		}
	}
	return nil
}

// DiscoveryResult is the skeleton produced by Discover.
type DiscoveryResult struct {
	Project graph.Project
	// Ungrounded counts concepts dropped for lacking evidence.
	Ungrounded int
	// Duplicates counts concepts dropped for repeating both the id and the
	// label of an earlier concept in their model.
	Duplicates int
	// Renamed counts concepts whose id clashed with a differently labelled
	// concept and was given a numeric suffix.
	Renamed int
}

// Discover asks the oracle for the skeleton graph. Any transport or schema
// failure is returned; the caller treats it as fatal.
func Discover(ctx context.Context, o oracle.Oracle, in DiscoverInput) (*DiscoveryResult, error) {
	user, err := render(discoverTmpl, in.promptData())
	if err != nil {
		return nil, err
	}
	resp, err := oracle.AskJSON[discoveryResponse](ctx, o, StageDiscover, in.Root, systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	res := &DiscoveryResult{Project: graph.Project{
		Summary:     resp.Summary,
		Description: resp.Description,
		Models:      make([]graph.Model, 0, len(resp.Models)),
	}}
	for i, dm := range resp.Models {
		m := graph.Model{
			ID:            strings.TrimSpace(dm.ID),
			Title:         dm.Title,
			Description:   dm.Description,
			Concepts:      []graph.Concept{},
			Relationships: []graph.Relationship{},
			Rules:         []graph.Rule{},
			Lifecycles:    []graph.Lifecycle{},
			Views:         []graph.ModelView{},
			StoryViews:    []graph.StoryView{},
		}
		if m.ID == "" {
			m.ID = fmt.Sprintf("model-%d", i+1)
		}
		if m.Title == "" {
			m.Title = m.ID
		}

		seen := make(map[string]bool)
		labels := make(map[string]string)
		for j, c := range dm.Concepts {
			c = normalizeConcept(c, j+1)
			if len(c.Evidence) == 0 {
				res.Ungrounded++
				continue
			}
			if seen[c.ID] {
				if strings.EqualFold(labels[c.ID], c.Label) {
					res.Duplicates++
					continue
				}
				c.ID = nextFree(seen, c.ID)
				res.Renamed++
			}
			seen[c.ID] = true
			labels[c.ID] = c.Label
			m.Concepts = append(m.Concepts, c)
		}
		res.Project.Models = append(res.Project.Models, m)
	}
	return res, nil
}

// normalizeConcept fills the defaults of the n-th concept of a model.
func normalizeConcept(c graph.Concept, n int) graph.Concept {
	c.ID = strings.TrimSpace(c.ID)
	c.Label = strings.TrimSpace(c.Label)
	if c.ID == "" {
		c.ID = slug(c.Label)
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("concept-%d", n)
	}
	if c.Label == "" {
		c.Label = c.ID
	}
	if c.Category == "" {
		c.Category = graph.CategoryOther
	}
	if c.Aliases == nil {
		c.Aliases = []string{}
	}
	c.BoundedContext = ""
	var evidence []graph.Evidence
	for _, e := range c.Evidence {
		if strings.TrimSpace(e.File) != "" {
			evidence = append(evidence, e)
		}
	}
	c.Evidence = evidence
	return c
}
