package index

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

func (idx *Index) buildLookup() {
	idx.byRel = make(map[string]int, len(idx.Files))
	for i, f := range idx.Files {
		idx.byRel[f.RelPath] = i
	}
}

// Resolve maps an evidence file reference to an indexed file. The reference
// may be relative to the root, relative to the scanned subdirectory,
// absolute under the root, or a unique path suffix.
func (idx *Index) Resolve(ref string) (File, bool) {
	if idx.byRel == nil {
		idx.buildLookup()
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return File{}, false
	}
	if filepath.IsAbs(ref) {
		rel, err := filepath.Rel(idx.Root, ref)
		if err != nil || strings.HasPrefix(rel, "..") {
			return File{}, false
		}
		ref = rel
	}
	ref = strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(ref)), "/")

	if i, ok := idx.byRel[ref]; ok {
		return idx.Files[i], true
	}
	if idx.Base != "" {
		if i, ok := idx.byRel[path.Join(idx.Base, ref)]; ok {
			return idx.Files[i], true
		}
	}

	var found File
	matches := 0
	for _, f := range idx.Files {
		if strings.HasSuffix(f.RelPath, "/"+ref) {
			found = f
			matches++
		}
	}
	return found, matches == 1
}

// ReadFile reads an indexed file by its relative path.
func (idx *Index) ReadFile(rel string) ([]byte, error) {
	if f, ok := idx.Resolve(rel); ok {
		return os.ReadFile(f.AbsPath)
	}
	return nil, os.ErrNotExist
}

// RelPaths returns the relative paths of every indexed file.
func (idx *Index) RelPaths() []string {
	out := make([]string, len(idx.Files))
	for i, f := range idx.Files {
		out[i] = f.RelPath
	}
	return out
}
