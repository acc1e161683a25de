package index

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultIgnores are always applied before repository rules, so a
// repository can re-include them with a negation.
var defaultIgnores = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"out/",
	"coverage/",
	"target/",
	"__pycache__/",
	".next/",
	"*.min.js",
	"*.d.ts",
}

// ignoreFiles are read from the repository root, in order.
var ignoreFiles = []string{".gitignore", ".conceptmapignore"}

type rule struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool
}

// Matcher applies gitignore-like rules with "last rule wins" behavior.
type Matcher struct {
	rules []rule
}

// NewMatcher builds a matcher from the default excludes followed by lines.
func NewMatcher(lines []string) *Matcher {
	all := make([]string, 0, len(defaultIgnores)+len(lines))
	all = append(all, defaultIgnores...)
	all = append(all, lines...)

	m := &Matcher{}
	for _, line := range all {
		if r, ok := parseRule(line); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// LoadMatcher reads the ignore files at root and appends extra rules.
// Missing ignore files are skipped.
func LoadMatcher(root string, extra []string) (*Matcher, error) {
	var lines []string
	for _, name := range ignoreFiles {
		fileLines, err := readLines(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, fileLines...)
	}
	lines = append(lines, extra...)
	return NewMatcher(lines), nil
}

// ShouldIgnore reports whether relPath (slash-separated, relative to the
// repository root) is excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = strings.TrimPrefix(path.Clean("/"+relPath), "/")
	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negated
		}
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if strings.HasPrefix(line, "!") {
		r.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	// A separator anywhere else also ties the pattern to the root.
	if strings.Contains(line, "/") {
		r.anchored = true
	}
	if line == "" {
		return rule{}, false
	}
	r.pattern = line
	return r, true
}

func (r rule) matches(relPath string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	target := relPath
	if !r.anchored {
		target = path.Base(relPath)
	}
	ok, err := doublestar.Match(r.pattern, target)
	return err == nil && ok
}

func readLines(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
