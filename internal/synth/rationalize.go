package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/oracle"
)

// Labeled is a concept name with its current classification label.
type Labeled struct {
	Name  string
	Label string
}

// Proposal maps each consolidated label to the concept names it subsumes.
type Proposal map[string][]string

// Validate rejects blank labels.
func (p *Proposal) Validate() error {
	for label := range *p {
		if strings.TrimSpace(label) == "" {
			return errors.New("proposal contains a blank label")
		}
	}
	return nil
}

// LabelConflict records a concept name claimed by more than one label.
type LabelConflict struct {
	Name   string
	Kept   string
	Losing string
}

// LabelMap builds the name to label map of a proposal. Labels are compared
// trimmed. When a name is claimed by several labels the lexically first
// label wins.
func LabelMap(p Proposal) (map[string]string, []LabelConflict) {
	names := make(map[string][]string, len(p))
	for label, members := range p {
		label = strings.TrimSpace(label)
		names[label] = append(names[label], members...)
	}
	labels := make([]string, 0, len(names))
	for label := range names {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make(map[string]string)
	var conflicts []LabelConflict
	for _, label := range labels {
		for _, name := range names[label] {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if kept, ok := out[name]; ok {
				if kept != label {
					conflicts = append(conflicts, LabelConflict{Name: name, Kept: kept, Losing: label})
				}
				continue
			}
			out[name] = label
		}
	}
	return out, conflicts
}

// Rationalize asks the oracle to consolidate fragmented labels and returns
// the resulting name to label map. On error the map is nil and callers
// keep their labels.
func Rationalize(ctx context.Context, o oracle.Oracle, items []Labeled, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(items) == 0 {
		return map[string]string{}, nil
	}
	user, err := render(rationalizeTmpl, items)
	if err != nil {
		return nil, err
	}
	proposal, err := oracle.AskJSON[Proposal](ctx, o, StageRationalize, fmt.Sprintf("%d concepts", len(items)), systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("rationalization: %w", err)
	}
	labels, conflicts := LabelMap(proposal)
	for _, c := range conflicts {
		logger.Warn("concept claimed by several labels", "concept", c.Name, "kept", c.Kept, "ignored", c.Losing)
	}
	logger.Info("labels rationalized", "labels", len(proposal), "concepts", len(labels))
	return labels, nil
}

// ApplyLabels returns a copy of docs in which every document whose name is
// in labels carries the new label. Documents absent from the map keep
// theirs.
func ApplyLabels(docs []graph.ConceptDoc, labels map[string]string) []graph.ConceptDoc {
	out := make([]graph.ConceptDoc, len(docs))
	for i, d := range docs {
		if label, ok := labels[d.Name]; ok {
			d.BoundedContext = label
		}
		out[i] = d
	}
	return out
}

// ModelConceptName is the name a staged concept goes by in a rationalization
// proposal. It is qualified by model so same-label concepts of different
// models are classified independently.
func ModelConceptName(modelID, label string) string {
	return modelID + "/" + label
}

// ModelLabeled lists the concepts of m for Rationalize under their
// ModelConceptName, with fallback as the label of concepts that have none.
func ModelLabeled(m graph.Model, fallback string) []Labeled {
	seen := make(map[string]bool, len(m.Concepts))
	items := make([]Labeled, 0, len(m.Concepts))
	for _, c := range m.Concepts {
		name := ModelConceptName(m.ID, c.Label)
		if seen[name] {
			continue
		}
		seen[name] = true
		label := c.BoundedContext
		if label == "" {
			label = fallback
		}
		items = append(items, Labeled{Name: name, Label: label})
	}
	return items
}

// ApplyBoundedContexts relabels the concepts of m keyed by ModelConceptName,
// the staged counterpart of ApplyLabels.
func ApplyBoundedContexts(m graph.Model, labels map[string]string) graph.Model {
	concepts := make([]graph.Concept, len(m.Concepts))
	for i, c := range m.Concepts {
		if label, ok := labels[ModelConceptName(m.ID, c.Label)]; ok {
			c.BoundedContext = label
		}
		concepts[i] = c
	}
	m.Concepts = concepts
	return m
}
