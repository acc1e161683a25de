package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/oracle"
)

type conceptDocResponse struct {
	Definition     string   `json:"definition"`
	Structure      string   `json:"structure"`
	Lifecycle      string   `json:"lifecycle"`
	Invariants     []string `json:"invariants"`
	Commands       []string `json:"commands"`
	Events         []string `json:"events"`
	Implementation []string `json:"implementation"`
}

// GenerateConceptDoc asks for the document sections of one flat concept.
// On error the returned document carries only the discovery summary.
func GenerateConceptDoc(ctx context.Context, o oracle.Oracle, c FlatConcept, snippets []Snippet) (graph.ConceptDoc, error) {
	doc := graph.ConceptDoc{
		Name:           c.Name,
		BoundedContext: c.BoundedContext,
		Summary:        c.Summary,
		Implementation: evidenceLines(c.Evidence),
	}
	user, err := render(conceptDocTmpl, map[string]any{"Concept": c, "Snippets": snippets})
	if err != nil {
		return doc, err
	}
	resp, err := oracle.AskJSON[conceptDocResponse](ctx, o, StageConceptDoc, c.Name, systemPrompt, user)
	if err != nil {
		return doc, err
	}
	doc.Definition = resp.Definition
	doc.Structure = resp.Structure
	doc.Lifecycle = resp.Lifecycle
	doc.Invariants = resp.Invariants
	doc.Commands = resp.Commands
	doc.Events = resp.Events
	doc.Implementation = appendUnique(doc.Implementation, resp.Implementation...)
	return doc, nil
}

// GenerateOverview asks for a plain-text overview of the project. On error
// it returns an empty string.
func GenerateOverview(ctx context.Context, o oracle.Oracle, root string, concepts []FlatConcept) (string, error) {
	user, err := render(overviewTmpl, map[string]any{"Root": root, "Concepts": concepts})
	if err != nil {
		return "", err
	}
	resp, err := oracle.Ask(ctx, o, StageOverview, root, systemPrompt, user, oracle.FormatText)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// ModelConceptDocs derives a document for every concept of an enriched
// model. evidence holds the references captured before Enrichment stripped
// them, keyed by concept id.
func ModelConceptDocs(m graph.Model, evidence map[string][]graph.Evidence) []graph.ConceptDoc {
	labels := make(map[string]string, len(m.Concepts))
	categories := make(map[string]graph.Category, len(m.Concepts))
	for _, c := range m.Concepts {
		labels[c.ID] = c.Label
		categories[c.ID] = c.Category
	}
	label := func(id string) string {
		if l, ok := labels[id]; ok {
			return l
		}
		return id
	}

	docs := make([]graph.ConceptDoc, 0, len(m.Concepts))
	for _, c := range m.Concepts {
		doc := graph.ConceptDoc{
			Name:           c.Label,
			BoundedContext: c.BoundedContext,
			Summary:        c.Description,
			Definition:     c.Description,
			Implementation: evidenceLines(evidence[c.ID]),
		}
		if doc.BoundedContext == "" {
			doc.BoundedContext = m.Title
		}

		var structure []string
		for _, r := range m.Relationships {
			if r.From != c.ID && r.To != c.ID {
				continue
			}
			line := fmt.Sprintf("%s %s %s", label(r.From), r.Phrase, label(r.To))
			structure = append(structure, line)
			other := r.To
			if other == c.ID {
				other = r.From
			}
			switch categories[other] {
			case graph.CategoryActivity:
				doc.Commands = appendUnique(doc.Commands, label(other))
			case graph.CategoryEvent:
				doc.Events = appendUnique(doc.Events, label(other))
			}
		}
		if len(c.Aliases) > 0 {
			structure = append([]string{"Also known as " + strings.Join(c.Aliases, ", ") + "."}, structure...)
		}
		doc.Structure = strings.Join(structure, "\n")

		for _, r := range m.Rules {
			for _, id := range r.ConceptIDs {
				if id == c.ID {
					doc.Invariants = append(doc.Invariants, r.Text)
					break
				}
			}
		}
		for _, l := range m.Lifecycles {
			if l.ConceptID != c.ID {
				continue
			}
			states := make([]string, len(l.StateIDs))
			for i, s := range l.StateIDs {
				states[i] = label(s)
			}
			doc.Lifecycle = "States: " + strings.Join(states, " -> ")
			if l.Initial != "" {
				doc.Lifecycle += fmt.Sprintf(". Starts as %s", label(l.Initial))
			}
			if l.Terminal != "" {
				doc.Lifecycle += fmt.Sprintf(". Ends as %s", label(l.Terminal))
			}
			doc.Lifecycle += "."
			break
		}
		if c.Notes != "" {
			doc.Definition = strings.TrimSpace(doc.Definition + "\n\n" + c.Notes)
		}
		docs = append(docs, doc)
	}
	return docs
}

func evidenceLines(evidence []graph.Evidence) []string {
	var out []string
	for _, e := range evidence {
		line := e.File
		if e.Line > 0 {
			line = fmt.Sprintf("%s:%d", e.File, e.Line)
		}
		if e.Symbol != "" {
			line += " (" + e.Symbol + ")"
		}
		out = appendUnique(out, line)
	}
	return out
}
