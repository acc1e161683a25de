package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/oracle"
)

// FlatConcept is a concept found by the convergence loop.
type FlatConcept struct {
	Name           string           `json:"name"`
	BoundedContext string           `json:"boundedContext"`
	Summary        string           `json:"summary"`
	Evidence       []graph.Evidence `json:"evidence,omitempty"`
}

type convergeResponse struct {
	Concepts []FlatConcept `json:"concepts"`
}

func (r *convergeResponse) Validate() error {
	if r.Concepts == nil {
		return errors.New(`missing "concepts"`)
	}
	return nil
}

// ConvergeResult is the outcome of the convergence loop.
type ConvergeResult struct {
	Concepts   []FlatConcept
	Iterations int
	// Converged is true when the loop stopped because an iteration
	// produced no new names, false when it hit the iteration cap.
	Converged bool
}

// Converge repeatedly asks for concepts not yet found, deduplicating by
// exact name, until an iteration adds nothing or maxIterations calls have
// been made. maxIterations below 1 is treated as 1. Any failed iteration
// fails the whole loop.
func Converge(ctx context.Context, o oracle.Oracle, in DiscoverInput, maxIterations int) (*ConvergeResult, error) {
	if maxIterations < 1 {
		maxIterations = 1
	}
	base := in.promptData()

	res := &ConvergeResult{}
	known := make(map[string]bool)
	var names []string

	for i := 1; i <= maxIterations; i++ {
		data := map[string]any{"Known": names}
		for k, v := range base {
			data[k] = v
		}
		user, err := render(convergeTmpl, data)
		if err != nil {
			return nil, err
		}

		unit := fmt.Sprintf("iteration %d", i)
		resp, err := oracle.AskJSON[convergeResponse](ctx, o, StageConverge, unit, systemPrompt, user)
		res.Iterations = i
		if err != nil {
			return nil, fmt.Errorf("discovery %s: %w", unit, err)
		}

		added := 0
		for _, c := range resp.Concepts {
			c.Name = strings.TrimSpace(c.Name)
			if c.Name == "" || known[c.Name] {
				continue
			}
			known[c.Name] = true
			names = append(names, c.Name)
			res.Concepts = append(res.Concepts, c)
			added++
		}
		if added == 0 {
			res.Converged = true
			break
		}
	}
	return res, nil
}
