package artifact

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/julianshen/conceptmap/internal/graph"
)

// ConceptFileName returns the Markdown file name for a concept. Letters and
// digits of any script are kept; everything else collapses to "-".
func ConceptFileName(name string) string {
	base := fileStem(name)
	if base == "" {
		base = "concept"
	}
	return base + ".md"
}

func fileStem(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:4])
}

// ConceptDocWriter writes concept documents under dir/concepts and gives
// every key its own file for the writer's lifetime. Writing the same key
// again rewrites that key's file.
type ConceptDocWriter struct {
	dir   string
	files map[string]string // key -> file name
	used  map[string]bool
}

// NewConceptDocWriter returns a writer for the output directory dir.
func NewConceptDocWriter(dir string) *ConceptDocWriter {
	return &ConceptDocWriter{dir: dir, files: map[string]string{}, used: map[string]bool{}}
}

// FileName returns the file name for key, allocating one on first use.
// The name derives from prefix and the document name; when that is empty
// or already taken by another key, a short hash of key is appended.
func (w *ConceptDocWriter) FileName(key, prefix, name string) string {
	if f, ok := w.files[key]; ok {
		return f
	}
	stem := fileStem(name)
	if p := fileStem(prefix); p != "" {
		if stem == "" {
			stem = p
		} else {
			stem = p + "--" + stem
		}
	}
	if stem == "" {
		stem = "concept-" + shortHash(key)
	} else if w.used[stem+".md"] {
		stem += "-" + shortHash(key)
	}
	file := stem + ".md"
	for n := 2; w.used[file]; n++ {
		file = fmt.Sprintf("%s-%d.md", stem, n)
	}
	w.used[file] = true
	w.files[key] = file
	return file
}

// Write renders doc into the file of key and returns the path.
func (w *ConceptDocWriter) Write(key, prefix string, doc graph.ConceptDoc) (string, error) {
	content, err := RenderConceptDoc(doc)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, ConceptsDir, w.FileName(key, prefix, doc.Name))
	if err := writeDoc(path, append(content, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// RenderConceptDoc renders doc as Markdown with YAML front matter and the
// fixed sections Metadata, Definition, Structure, Lifecycle, Invariants,
// Commands, Events and Implementation.
func RenderConceptDoc(doc graph.ConceptDoc) ([]byte, error) {
	front, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding front matter for %s: %w", doc.Name, err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", doc.Name)

	b.WriteString("## Metadata\n\n")
	fmt.Fprintf(&b, "- **Bounded context:** %s\n", orNone(doc.BoundedContext))
	fmt.Fprintf(&b, "- **Summary:** %s\n\n", orNone(doc.Summary))

	section(&b, "Definition", doc.Definition)
	section(&b, "Structure", doc.Structure)
	section(&b, "Lifecycle", doc.Lifecycle)
	list(&b, "Invariants", doc.Invariants)
	list(&b, "Commands", doc.Commands)
	list(&b, "Events", doc.Events)
	list(&b, "Implementation", doc.Implementation)
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_none_"
	}
	return s
}

func section(b *bytes.Buffer, title, body string) {
	fmt.Fprintf(b, "## %s\n\n%s\n\n", title, orNone(strings.TrimSpace(body)))
}

func list(b *bytes.Buffer, title string, items []string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(items) == 0 {
		b.WriteString("_none_\n\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// WriteConceptDoc renders a single doc into dir/concepts/<name>.md and
// returns the path. Use a ConceptDocWriter for a set of documents.
func WriteConceptDoc(dir string, doc graph.ConceptDoc) (string, error) {
	return NewConceptDocWriter(dir).Write(doc.Name, "", doc)
}

// ParseFrontMatter reads the YAML front matter of a rendered concept document.
func ParseFrontMatter(content []byte) (graph.ConceptDoc, error) {
	var doc graph.ConceptDoc
	rest, ok := bytes.CutPrefix(content, []byte("---\n"))
	if !ok {
		return doc, fmt.Errorf("missing front matter")
	}
	front, _, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return doc, fmt.Errorf("unterminated front matter")
	}
	if err := yaml.Unmarshal(front, &doc); err != nil {
		return doc, fmt.Errorf("parsing front matter: %w", err)
	}
	return doc, nil
}
