package synth

import (
	"fmt"
	"os"
	"strings"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/index"
)

// memSource is an in-memory FileSource keyed by relative path.
type memSource map[string]string

func (m memSource) Resolve(ref string) (index.File, bool) {
	if _, ok := m[ref]; ok {
		return index.File{RelPath: ref, AbsPath: "/repo/" + ref, Size: int64(len(m[ref]))}, true
	}
	return index.File{}, false
}

func (m memSource) ReadFile(rel string) ([]byte, error) {
	s, ok := m[rel]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(s), nil
}

func concept(id, label string, evidence ...string) graph.Concept {
	c := graph.Concept{ID: id, Label: label, Category: graph.CategoryThing, Description: label + " description", Aliases: []string{}}
	for _, f := range evidence {
		c.Evidence = append(c.Evidence, graph.Evidence{File: f})
	}
	return c
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func quoteAll(ids []string) string {
	q := make([]string, len(ids))
	for i, id := range ids {
		q[i] = fmt.Sprintf("%q", id)
	}
	return strings.Join(q, ",")
}
