package synth

import (
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/index"
)

// SnippetLimits bounds the code shown for one concept.
type SnippetLimits struct {
	Files int // distinct files per concept
	Lines int // lines per file
	Bytes int // bytes per file
}

// DefaultSnippetLimits returns the limits used when none are configured.
func DefaultSnippetLimits() SnippetLimits {
	return SnippetLimits{Files: 3, Lines: 120, Bytes: 6000}
}

func (l SnippetLimits) withDefaults() SnippetLimits {
	d := DefaultSnippetLimits()
	if l.Files <= 0 {
		l.Files = d.Files
	}
	if l.Lines <= 0 {
		l.Lines = d.Lines
	}
	if l.Bytes <= 0 {
		l.Bytes = d.Bytes
	}
	return l
}

// Snippet is an excerpt of one resolved file.
type Snippet struct {
	File      string
	StartLine int
	EndLine   int
	Text      string
}

// FileSource resolves evidence references and reads indexed files.
// *index.Index satisfies it.
type FileSource interface {
	Resolve(ref string) (index.File, bool)
	ReadFile(rel string) ([]byte, error)
}

// Snippets resolves evidence against src and returns bounded excerpts, one
// per distinct file in evidence order. Windows are centred on the evidence
// line when one is given. Unresolvable or unreadable references are skipped.
func Snippets(src FileSource, evidence []graph.Evidence, lim SnippetLimits) []Snippet {
	lim = lim.withDefaults()
	var out []Snippet
	seen := make(map[string]bool)
	for _, e := range evidence {
		if len(out) >= lim.Files {
			break
		}
		f, ok := src.Resolve(e.File)
		if !ok || seen[f.RelPath] {
			continue
		}
		data, err := src.ReadFile(f.RelPath)
		if err != nil {
			continue
		}
		seen[f.RelPath] = true
		out = append(out, excerpt(f.RelPath, string(data), e.Line, lim))
	}
	return out
}

func excerpt(file, text string, line int, lim SnippetLimits) Snippet {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	start := 0
	if line > 0 && len(lines) > lim.Lines {
		start = line - 1 - lim.Lines/2
		if start > len(lines)-lim.Lines {
			start = len(lines) - lim.Lines
		}
		if start < 0 {
			start = 0
		}
	}
	end := start + lim.Lines
	if end > len(lines) {
		end = len(lines)
	}

	body := strings.Join(lines[start:end], "\n")
	if len(body) > lim.Bytes {
		body = body[:lim.Bytes]
		if i := strings.LastIndexByte(body, '\n'); i > 0 {
			body = body[:i]
		}
		end = start + strings.Count(body, "\n") + 1
	}
	return Snippet{File: file, StartLine: start + 1, EndLine: end, Text: body}
}
