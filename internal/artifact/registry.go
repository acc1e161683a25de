package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
)

// RegistrySchemaVersion is written to every registry this package saves.
const RegistrySchemaVersion = "1.0.0"

// supportedSchema is the range of schema versions this package can rewrite.
var supportedSchema = mustConstraint("^1.0.0")

func mustConstraint(c string) *semver.Constraints {
	cons, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cons
}

// RegistryEntry is one published project.
type RegistryEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Registry lists the projects available to the viewer.
type Registry struct {
	SchemaVersion string          `json:"schemaVersion,omitempty"`
	Projects      []RegistryEntry `json:"projects"`
}

// ErrUnsupportedSchema is returned for documents written by an
// incompatible version.
var ErrUnsupportedSchema = errors.New("unsupported schema version")

func checkSchemaVersion(v string) error {
	if v == "" {
		return nil
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrUnsupportedSchema, v, err)
	}
	if !supportedSchema.Check(ver) {
		return fmt.Errorf("%w %s (supported %s)", ErrUnsupportedSchema, v, supportedSchema)
	}
	return nil
}

// LoadRegistry reads the registry at path. A missing file is an empty
// registry.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Registry{Projects: []RegistryEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	if err := checkSchemaVersion(r.SchemaVersion); err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	if r.Projects == nil {
		r.Projects = []RegistryEntry{}
	}
	return &r, nil
}

// Upsert replaces the entry with e's id, or appends e.
func (r *Registry) Upsert(e RegistryEntry) {
	for i := range r.Projects {
		if r.Projects[i].ID == e.ID {
			r.Projects[i] = e
			return
		}
	}
	r.Projects = append(r.Projects, e)
}

// Remove deletes the entry with the given id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	for i := range r.Projects {
		if r.Projects[i].ID == id {
			r.Projects = append(r.Projects[:i], r.Projects[i+1:]...)
			return true
		}
	}
	return false
}

// Sorted returns the entries ordered by most recent update.
func (r *Registry) Sorted() []RegistryEntry {
	out := append([]RegistryEntry(nil), r.Projects...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Save rewrites the whole registry at path.
func (r *Registry) Save(path string) error {
	r.SchemaVersion = RegistrySchemaVersion
	_, err := writeJSON(path, r)
	return err
}

// Publish upserts e into the registry at path and rewrites the file.
// Registries with an unsupported schema version are left untouched.
func Publish(path string, e RegistryEntry) error {
	r, err := LoadRegistry(path)
	if err != nil {
		return err
	}
	r.Upsert(e)
	return r.Save(path)
}

// Unpublish removes the entry with id from the registry at path.
func Unpublish(path, id string) (bool, error) {
	r, err := LoadRegistry(path)
	if err != nil {
		return false, err
	}
	if !r.Remove(id) {
		return false, nil
	}
	return true, r.Save(path)
}
