// internal/output/formatter.go
package output

import (
	"fmt"

	"github.com/julianshen/conceptmap/internal/synth"
)

// Report formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formatter formats a run report into output bytes.
type Formatter interface {
	Format(report *synth.Report) ([]byte, error)
}

// NewFormatter returns the formatter for name ("" means markdown).
func NewFormatter(name string) (Formatter, error) {
	switch name {
	case "", FormatMarkdown:
		return NewMarkdownFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	}
	return nil, fmt.Errorf("unknown report format %q", name)
}
