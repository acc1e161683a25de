package synth

import (
	"fmt"
	"strings"
	"unicode"
)

// Diagnostic records a soft failure: a unit of work that degraded to an
// empty or unchanged result without aborting the run.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Unit    string `json:"unit"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.Stage, d.Unit, d.Message)
}

func diag(stage, unit string, err error) Diagnostic {
	return Diagnostic{Stage: stage, Unit: unit, Message: err.Error()}
}

// slug turns a label into a kebab-case id ("Line Item" -> "line-item").
// Letters and digits of any script are kept.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// nextFree returns id, or the first of id-2, id-3, ... not in taken.
func nextFree(taken map[string]bool, id string) string {
	if !taken[id] {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]bool, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}
