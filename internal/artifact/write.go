// Package artifact persists pipeline output: the Project (or legacy
// concepts) JSON document, per-concept Markdown documents and the registry
// of published projects.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianshen/conceptmap/internal/graph"
)

// File names inside the output directory.
const (
	ProjectFile  = "project.json"
	LegacyFile   = "concepts.json"
	ConceptsDir  = "concepts"
	dirPerm      = 0o755
	filePerm     = 0o644
	tempFileGlob = ".tmp-*"
)

// LegacyDocument is the single-model artifact of the flat-document shape.
type LegacyDocument struct {
	RepoRoot        string             `json:"repoRoot"`
	GeneratedAt     time.Time          `json:"generatedAt"`
	ProjectOverview string             `json:"projectOverview"`
	Concepts        []graph.ConceptDoc `json:"concepts"`
}

// Prepare creates the output directory dir. It never removes anything, so
// a failed run leaves the previous artifacts in place.
func Prepare(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	return nil
}

// CheckClean reports whether Clean would refuse dir because it contains
// one of protect (typically the analyzed repository).
func CheckClean(dir string, protect ...string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}
	for _, p := range protect {
		pa, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if within(pa, abs) {
			return fmt.Errorf("refusing to clean %s: it contains %s", abs, pa)
		}
	}
	return nil
}

// Clean removes the artifacts a previous run wrote to dir. Files it does
// not own are left alone.
func Clean(dir string, protect ...string) error {
	if err := CheckClean(dir, protect...); err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}
	for _, name := range []string{ProjectFile, LegacyFile, ConceptsDir} {
		if err := os.RemoveAll(filepath.Join(abs, name)); err != nil {
			return fmt.Errorf("cleaning %s: %w", name, err)
		}
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// WriteProject writes p to dir/project.json and returns the path.
func WriteProject(dir string, p graph.Project) (string, error) {
	return writeJSON(filepath.Join(dir, ProjectFile), p)
}

// WriteLegacy writes doc to dir/concepts.json and returns the path.
func WriteLegacy(dir string, doc LegacyDocument) (string, error) {
	if doc.Concepts == nil {
		doc.Concepts = []graph.ConceptDoc{}
	}
	return writeJSON(filepath.Join(dir, LegacyFile), doc)
}

// ReadProject loads a project artifact.
func ReadProject(path string) (*graph.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project: %w", err)
	}
	var p graph.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing project %s: %w", path, err)
	}
	if err := checkSchemaVersion(p.SchemaVersion); err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	return &p, nil
}

func writeJSON(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := writeAtomic(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// writeDoc creates parent directories as needed and writes content to path.
func writeDoc(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, filePerm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// writeAtomic writes content to a temp file next to path and renames it
// into place, so readers never see a partial file.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+tempFileGlob)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
