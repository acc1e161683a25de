// Package index lists the candidate source files of a repository: a
// recursive walk that honours ignore rules and extension filters.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultSubdir is scanned instead of the root when it exists and no other
// subdirectory is requested.
const DefaultSubdir = "src"

// File is one indexed source file.
type File struct {
	AbsPath string `json:"absolutePath"`
	RelPath string `json:"relativePath"` // slash-separated, relative to the repository root
	Size    int64  `json:"sizeBytes"`
}

// Options controls a scan.
type Options struct {
	Root        string
	Subdir      string   // preferred subdirectory; DefaultSubdir when empty
	Extensions  []string // ".ts" or doublestar patterns like "**/*.{ts,tsx}"; empty means all files
	ExtraIgnore []string // additional gitignore-style rules
}

// Index is the result of a scan.
type Index struct {
	Root  string // absolute repository root
	Base  string // slash-separated scanned directory relative to Root ("" for the root)
	Files []File

	byRel map[string]int
}

// Scan walks the repository and returns the matching files sorted by
// relative path.
func Scan(ctx context.Context, opts Options) (*Index, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	matcher, err := LoadMatcher(root, opts.ExtraIgnore)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}
	filter, err := newExtFilter(opts.Extensions)
	if err != nil {
		return nil, err
	}

	base := chooseBase(root, opts.Subdir)
	idx := &Index{Root: root, Base: base}

	walkRoot := filepath.Join(root, filepath.FromSlash(base))
	err = filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if matcher.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.ShouldIgnore(rel, false) || !filter.match(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		idx.Files = append(idx.Files, File{AbsPath: p, RelPath: rel, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", walkRoot, err)
	}

	sort.Slice(idx.Files, func(i, j int) bool { return idx.Files[i].RelPath < idx.Files[j].RelPath })
	idx.buildLookup()
	return idx, nil
}

func chooseBase(root, subdir string) string {
	if subdir == "" {
		subdir = DefaultSubdir
	}
	if subdir == "." {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(subdir)), "/")
	if fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(clean))); err == nil && fi.IsDir() {
		return clean
	}
	return ""
}

type extFilter struct {
	exts     map[string]bool
	patterns []string
}

func newExtFilter(specs []string) (*extFilter, error) {
	f := &extFilter{exts: map[string]bool{}}
	for _, s := range specs {
		s = strings.TrimSpace(s)
		switch {
		case s == "":
		case strings.HasPrefix(s, ".") && !strings.ContainsAny(s, "*?[{/"):
			f.exts[strings.ToLower(s)] = true
		default:
			if !doublestar.ValidatePattern(s) {
				return nil, fmt.Errorf("invalid extension pattern %q", s)
			}
			f.patterns = append(f.patterns, s)
		}
	}
	return f, nil
}

func (f *extFilter) match(rel string) bool {
	if len(f.exts) == 0 && len(f.patterns) == 0 {
		return true
	}
	if f.exts[strings.ToLower(path.Ext(rel))] {
		return true
	}
	for _, p := range f.patterns {
		target := rel
		if !strings.Contains(p, "/") {
			target = path.Base(rel)
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}
