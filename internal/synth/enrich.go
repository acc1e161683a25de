package synth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/oracle"
)

// EnrichReport summarizes Enrichment of one model.
type EnrichReport struct {
	Enriched    int
	Skipped     int // no resolvable evidence
	Failed      int
	Dangling    int
	Renamed     int
	Diagnostics []Diagnostic
}

type conceptSummary struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Category graph.Category `json:"category"`
}

type enrichPrompt struct {
	Concept       enrichConcept
	Siblings      []conceptSummary
	Relationships []graph.Relationship
	Snippets      []Snippet
}

type enrichConcept struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Category    graph.Category `json:"category"`
	Description string         `json:"description"`
	Aliases     []string       `json:"aliases"`
}

var errNoEvidence = errors.New("no evidence file resolved")

// EnrichModel enriches the concepts of m one at a time in discovery order.
// Each request carries the sibling concepts and the relationships
// accumulated from concepts processed earlier in the same model, so later
// concepts see more context than earlier ones. A concept whose evidence
// resolves to no file is kept as is; a concept whose call fails keeps its
// skeleton. Evidence is stripped from every concept.
func EnrichModel(ctx context.Context, o oracle.Oracle, m graph.Model, src FileSource, lim SnippetLimits, logger *slog.Logger) (graph.Model, EnrichReport) {
	if logger == nil {
		logger = slog.Default()
	}
	var rep EnrichReport
	acc := NewAccumulator(m)

	for _, c := range m.Concepts {
		unit := m.ID + "/" + c.ID
		snippets := Snippets(src, c.Evidence, lim)
		if len(snippets) == 0 {
			logger.Debug("enrichment skipped", "concept", unit, "reason", errNoEvidence)
			rep.Skipped++
			acc = acc.WithoutEvidence(c.ID)
			continue
		}

		res, err := enrichConceptCall(ctx, o, unit, c, acc, snippets)
		if err != nil {
			logger.Warn("enrichment failed", "concept", unit, "error", err)
			rep.Failed++
			rep.Diagnostics = append(rep.Diagnostics, diag(StageEnrich, unit, err))
			acc = acc.WithoutEvidence(c.ID)
			continue
		}
		res.ConceptID = c.ID
		acc = Reduce(acc, res)
		rep.Enriched++
		logger.Debug("concept enriched", "concept", unit,
			"relationships", len(res.Relationships), "rules", len(res.Rules))
	}

	rep.Dangling = acc.Dangling
	rep.Renamed = acc.Renamed
	return acc.Apply(m), rep
}

func enrichConceptCall(ctx context.Context, o oracle.Oracle, unit string, c graph.Concept, acc Accumulator, snippets []Snippet) (EnrichmentResult, error) {
	siblings := make([]conceptSummary, 0, len(acc.Concepts))
	for _, s := range acc.Concepts {
		if s.ID != c.ID {
			siblings = append(siblings, conceptSummary{ID: s.ID, Label: s.Label, Category: s.Category})
		}
	}
	user, err := render(enrichTmpl, enrichPrompt{
		Concept: enrichConcept{
			ID:          c.ID,
			Label:       c.Label,
			Category:    c.Category,
			Description: c.Description,
			Aliases:     c.Aliases,
		},
		Siblings:      siblings,
		Relationships: acc.Relationships,
		Snippets:      snippets,
	})
	if err != nil {
		return EnrichmentResult{}, err
	}
	return oracle.AskJSON[EnrichmentResult](ctx, o, StageEnrich, unit, systemPrompt, user)
}
