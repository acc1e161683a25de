// internal/output/markdown.go
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianshen/conceptmap/internal/synth"
)

// MarkdownFormatter outputs a report as human-readable Markdown.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format renders the report as Markdown.
func (f *MarkdownFormatter) Format(r *synth.Report) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.ProjectName)
	fmt.Fprintf(&b, "Run `%s` (%s shape) on `%s`\n\n", r.RunID, r.Shape, r.RepoPath)

	b.WriteString("| | |\n|---|---|\n")
	row := func(k string, v any) { fmt.Fprintf(&b, "| %s | %v |\n", k, v) }
	row("Files indexed", r.Files)
	row("Declarations", r.Declarations)
	if r.Shape == synth.ShapeFlat {
		converged := "iteration cap reached"
		if r.Converged {
			converged = "converged"
		}
		row("Discovery iterations", fmt.Sprintf("%d (%s)", r.Iterations, converged))
	} else {
		row("Models", r.Models)
	}
	row("Concepts", r.Concepts)
	if r.Shape != synth.ShapeFlat {
		row("Relationships", r.Relationships)
		row("Rules", r.Rules)
		row("Lifecycles", r.Lifecycles)
		row("Views", r.Views)
		row("Stories", r.Stories)
	}
	row("Concept documents", r.ConceptDocs)
	row("Oracle calls", r.OracleCalls)
	row("Dangling ids dropped", r.Dangling)
	if r.Ungrounded > 0 {
		row("Concepts without evidence", r.Ungrounded)
	}

	b.WriteString("\n## Output\n\n")
	fmt.Fprintf(&b, "- Artifact: `%s`\n", r.ArtifactPath)
	switch {
	case r.Published:
		fmt.Fprintf(&b, "- Published to `%s` as `%s`\n", r.RegistryPath, r.ProjectID)
	case r.RegistryPath == "":
		b.WriteString("- Not published\n")
	default:
		fmt.Fprintf(&b, "- Not published to `%s`\n", r.RegistryPath)
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString("\n## Diagnostics\n\n")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "- **%s** `%s`: %s\n", d.Stage, d.Unit, d.Message)
		}
	}

	if len(r.Violations) > 0 {
		b.WriteString("\n## Size bounds not met\n\n")
		for _, v := range r.Violations {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}

	fmt.Fprintf(&b, "\n---\n*Completed in %s*\n", r.Duration.Round(100*time.Millisecond))
	return []byte(b.String()), nil
}
