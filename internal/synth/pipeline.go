package synth

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/julianshen/conceptmap/internal/artifact"
	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/index"
	"github.com/julianshen/conceptmap/internal/oracle"
	"github.com/julianshen/conceptmap/internal/parser"
	"github.com/julianshen/conceptmap/internal/store"
)

// Stages outside the oracle-backed ones, used in diagnostics.
const (
	StageExtract = "extract"
	StagePersist = "persist"
	StagePublish = "publish"
)

// Shape selects the pipeline variant.
type Shape string

const (
	// ShapeModel is the staged pipeline producing a Project of Models.
	ShapeModel Shape = "model"
	// ShapeFlat is the flat-document pipeline producing concept documents.
	ShapeFlat Shape = "flat"
)

// ParseShape validates a shape name; empty means ShapeModel.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case "", ShapeModel:
		return ShapeModel, nil
	case ShapeFlat:
		return ShapeFlat, nil
	}
	return "", fmt.Errorf("unknown shape %q (want %q or %q)", s, ShapeModel, ShapeFlat)
}

// Options controls one run.
type Options struct {
	Root            string
	Name            string // project name; defaults to the root's base name
	OutDir          string
	Clean           bool
	Shape           Shape
	MaxIterations   int // convergence cap, flat shape only
	Rationalize     bool
	ConceptDocs     bool // per-concept Markdown in the model shape
	Subdir          string
	Extensions      []string
	Ignore          []string
	MaxDeclarations int
	Snippets        SnippetLimits
	ParseWorkers    int
	Publish         bool
	RegistryPath    string
	RunID           string // generated when empty
}

// History records runs. *store.Store satisfies it.
type History interface {
	BeginRun(r store.Run) error
	FinishRun(r store.Run) error
}

// Extractor lists exported declarations of the given files.
type Extractor func(ctx context.Context, files []string, reader parser.SourceReader, workers int) ([]parser.Declaration, []parser.FileError)

// Pipeline sequences Discovery, Enrichment, View Synthesis, Story
// Synthesis, optional Rationalization, Assembly, Persistence and Publish.
// Every oracle call is issued from the calling goroutine, one at a time.
type Pipeline struct {
	Oracle  oracle.Oracle
	Extract Extractor // defaults to parser.ExtractAll
	Logger  *slog.Logger
	History History // optional
	Now     func() time.Time
}

// Report summarizes a finished run.
type Report struct {
	RunID         string            `json:"runId"`
	ProjectID     string            `json:"projectId"`
	ProjectName   string            `json:"projectName"`
	RepoPath      string            `json:"repoPath"`
	Shape         Shape             `json:"shape"`
	StartedAt     time.Time         `json:"startedAt"`
	Duration      time.Duration     `json:"duration"`
	Files         int               `json:"files"`
	Declarations  int               `json:"declarations"`
	Models        int               `json:"models"`
	Concepts      int               `json:"concepts"`
	Relationships int               `json:"relationships"`
	Rules         int               `json:"rules"`
	Lifecycles    int               `json:"lifecycles"`
	Views         int               `json:"views"`
	Stories       int               `json:"stories"`
	Iterations    int               `json:"iterations,omitempty"`
	Converged     bool              `json:"converged,omitempty"`
	Ungrounded    int               `json:"ungrounded"`
	OracleCalls   int               `json:"oracleCalls"`
	Dangling      int               `json:"dangling"`
	Diagnostics   []Diagnostic      `json:"diagnostics"`
	Violations    []graph.Violation `json:"violations"`
	ArtifactPath  string            `json:"artifactPath"`
	ConceptDocs   int               `json:"conceptDocs"`
	Published     bool              `json:"published"`
	RegistryPath  string            `json:"registryPath,omitempty"`
}

// ProjectID derives a stable project id from the absolute repository path,
// so re-runs on the same repository replace the same registry entry.
func ProjectID(absRoot string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(absRoot))).String()
}

// countingOracle counts the calls issued during one run.
type countingOracle struct {
	oracle.Oracle
	calls int
}

func (c *countingOracle) Generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	c.calls++
	return c.Oracle.Generate(ctx, req)
}

type run struct {
	*Pipeline
	opts   Options
	oracle *countingOracle
	log    *slog.Logger
	rep    *Report
	idx    *index.Index
	decls  []parser.Declaration
	docs   *artifact.ConceptDocWriter
}

// Run executes the pipeline. An error is returned only when the run could
// not reach a usable Discovery result (indexing, extraction, output
// preparation, Discovery itself) or the artifact could not be written;
// later per-unit failures are reported as diagnostics.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving repository path: %w", err)
	}
	shape, err := ParseShape(string(opts.Shape))
	if err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(root)
	}
	opts.Root, opts.Shape = root, shape

	r := &run{
		Pipeline: p,
		opts:     opts,
		oracle:   &countingOracle{Oracle: p.Oracle},
		rep: &Report{
			RunID:        opts.RunID,
			ProjectID:    ProjectID(root),
			ProjectName:  opts.Name,
			RepoPath:     root,
			Shape:        shape,
			StartedAt:    p.now(),
			Diagnostics:  []Diagnostic{},
			Violations:   []graph.Violation{},
			RegistryPath: opts.RegistryPath,
		},
	}
	r.log = p.logger().With("run", opts.RunID)
	r.beginHistory()

	err = r.execute(ctx)
	r.rep.OracleCalls = r.oracle.calls
	r.rep.Duration = p.now().Sub(r.rep.StartedAt)
	r.finishHistory(err)
	if err != nil {
		return nil, err
	}
	r.log.Info("run finished", "concepts", r.rep.Concepts, "oracle_calls", r.rep.OracleCalls,
		"soft_failures", len(r.rep.Diagnostics), "duration", r.rep.Duration.Round(time.Millisecond))
	return r.rep, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (r *run) execute(ctx context.Context) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}
	if r.opts.Shape == ShapeFlat {
		return r.runFlat(ctx)
	}
	return r.runModel(ctx)
}

// prepare readies the output directory, indexes the repository and
// extracts declarations. Every failure here is fatal.
func (r *run) prepare(ctx context.Context) error {
	if err := artifact.Prepare(r.opts.OutDir); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if r.opts.Clean {
		if err := artifact.CheckClean(r.opts.OutDir, r.opts.Root); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}
	r.docs = artifact.NewConceptDocWriter(r.opts.OutDir)

	r.log.Info("indexing repository", "root", r.opts.Root)
	idx, err := index.Scan(ctx, index.Options{
		Root:        r.opts.Root,
		Subdir:      r.opts.Subdir,
		Extensions:  r.opts.Extensions,
		ExtraIgnore: r.opts.Ignore,
	})
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	r.idx = idx
	r.rep.Files = len(idx.Files)

	extract := r.Extract
	if extract == nil {
		extract = parser.ExtractAll
	}
	decls, fileErrs := extract(ctx, idx.RelPaths(), idx, r.opts.ParseWorkers)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	for _, fe := range fileErrs {
		r.log.Warn("declaration extraction failed", "file", fe.File, "error", fe.Err)
		r.rep.Diagnostics = append(r.rep.Diagnostics, diag(StageExtract, fe.File, fe.Err))
	}
	r.decls = decls
	r.rep.Declarations = len(decls)
	r.log.Info("repository indexed", "files", len(idx.Files), "declarations", len(decls), "base", idx.Base)
	return nil
}

func (r *run) discoverInput() DiscoverInput {
	return DiscoverInput{Root: r.opts.Root, Declarations: r.decls, MaxDeclarations: r.opts.MaxDeclarations}
}

func (r *run) soft(stage, unit string, err error) {
	r.log.Warn(stage+" failed", "unit", unit, "error", err)
	r.rep.Diagnostics = append(r.rep.Diagnostics, diag(stage, unit, err))
}

func (r *run) runModel(ctx context.Context) error {
	r.log.Info("discovering structure")
	disc, err := Discover(ctx, r.oracle, r.discoverInput())
	if err != nil {
		return err
	}
	if err := r.clean(); err != nil {
		return err
	}
	r.rep.Ungrounded = disc.Ungrounded
	if disc.Ungrounded > 0 || disc.Duplicates > 0 || disc.Renamed > 0 {
		r.log.Warn("discovered concepts adjusted", "without_evidence", disc.Ungrounded,
			"duplicates", disc.Duplicates, "renamed_ids", disc.Renamed)
	}

	project := disc.Project
	project.SchemaVersion = graph.SchemaVersion
	project.ID = r.rep.ProjectID
	project.Name = r.opts.Name

	evidence := make(map[string]map[string][]graph.Evidence, len(project.Models))
	for i, m := range project.Models {
		evidence[m.ID] = captureEvidence(m)
		r.log.Info("enriching model", "model", m.ID, "concepts", len(m.Concepts))
		enriched, er := EnrichModel(ctx, r.oracle, m, r.idx, r.opts.Snippets, r.log)
		project.Models[i] = enriched
		r.rep.Diagnostics = append(r.rep.Diagnostics, er.Diagnostics...)
		r.rep.Dangling += er.Dangling
		if er.Dangling > 0 {
			r.log.Warn("dangling references dropped during enrichment", "model", m.ID, "count", er.Dangling)
		}
		r.log.Debug("model enriched", "model", m.ID, "enriched", er.Enriched, "skipped", er.Skipped,
			"failed", er.Failed, "renamed_ids", er.Renamed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range project.Models {
		m := &project.Models[i]
		r.log.Info("synthesizing views", "model", m.ID)
		views, violations, err := SynthesizeViews(ctx, r.oracle, *m)
		if err != nil {
			r.soft(StageViews, m.ID, err)
		}
		m.Views = views
		r.rep.Violations = append(r.rep.Violations, violations...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range project.Models {
		m := &project.Models[i]
		r.log.Info("synthesizing stories", "model", m.ID)
		stories, violations, err := SynthesizeStories(ctx, r.oracle, *m)
		if err != nil {
			r.soft(StageStories, m.ID, err)
		}
		m.StoryViews = stories
		r.rep.Violations = append(r.rep.Violations, violations...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.opts.Rationalize {
		r.rationalizeModels(ctx, &project)
	}

	r.assemble(&project)

	path, err := artifact.WriteProject(r.opts.OutDir, project)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	r.rep.ArtifactPath = path
	r.log.Info("project written", "path", path)

	if r.opts.ConceptDocs {
		for _, m := range project.Models {
			for i, doc := range ModelConceptDocs(m, evidence[m.ID]) {
				r.writeConceptDoc(m.ID+"/"+m.Concepts[i].ID, m.ID, doc)
			}
		}
	}

	r.publish()
	return nil
}

func captureEvidence(m graph.Model) map[string][]graph.Evidence {
	out := make(map[string][]graph.Evidence, len(m.Concepts))
	for _, c := range m.Concepts {
		out[c.ID] = c.Evidence
	}
	return out
}

// rationalizeModels relabels bounded contexts across all models. Concepts
// start with their model title as label and are named per model.
func (r *run) rationalizeModels(ctx context.Context, project *graph.Project) {
	var items []Labeled
	for i := range project.Models {
		m := &project.Models[i]
		concepts := make([]graph.Concept, len(m.Concepts))
		for j, c := range m.Concepts {
			if c.BoundedContext == "" {
				c.BoundedContext = m.Title
			}
			concepts[j] = c
		}
		m.Concepts = concepts
		items = append(items, ModelLabeled(*m, m.Title)...)
	}

	r.log.Info("rationalizing labels", "concepts", len(items))
	labels, err := Rationalize(ctx, r.oracle, items, r.log)
	if err != nil {
		r.soft(StageRationalize, project.Name, err)
		return
	}
	for i := range project.Models {
		project.Models[i] = ApplyBoundedContexts(project.Models[i], labels)
	}
}

// assemble prunes dangling ids, reports bound violations and fills counts.
func (r *run) assemble(project *graph.Project) {
	project.GeneratedAt = r.now().UTC()
	for i, m := range project.Models {
		pruned, dangling := graph.PruneDangling(m)
		if n := dangling.Total(); n > 0 {
			r.log.Warn("dangling ids removed", "model", m.ID, "count", n, "locations", dangling.Locations())
			r.rep.Dangling += n
		}
		project.Models[i] = pruned

		r.rep.Concepts += len(pruned.Concepts)
		r.rep.Relationships += len(pruned.Relationships)
		r.rep.Rules += len(pruned.Rules)
		r.rep.Lifecycles += len(pruned.Lifecycles)
		r.rep.Views += len(pruned.Views)
		r.rep.Stories += len(pruned.StoryViews)
	}
	r.rep.Models = len(project.Models)
	for _, v := range r.rep.Violations {
		r.log.Warn("size bound not met", "subject", v.Subject, "field", v.Field, "count", v.Count, "min", v.Min, "max", v.Max)
	}
}

func (r *run) runFlat(ctx context.Context) error {
	r.log.Info("discovering concepts", "max_iterations", r.opts.MaxIterations)
	conv, err := Converge(ctx, r.oracle, r.discoverInput(), r.opts.MaxIterations)
	if err != nil {
		return err
	}
	if err := r.clean(); err != nil {
		return err
	}
	r.rep.Iterations = conv.Iterations
	r.rep.Converged = conv.Converged
	if !conv.Converged {
		r.log.Warn("discovery stopped at iteration cap", "iterations", conv.Iterations)
	}

	docs := make([]graph.ConceptDoc, 0, len(conv.Concepts))
	for _, c := range conv.Concepts {
		r.log.Debug("documenting concept", "concept", c.Name)
		doc, err := GenerateConceptDoc(ctx, r.oracle, c, Snippets(r.idx, c.Evidence, r.opts.Snippets))
		if err != nil {
			r.soft(StageConceptDoc, c.Name, err)
		}
		docs = append(docs, doc)
		r.writeConceptDoc(c.Name, "", doc)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	items := make([]Labeled, len(docs))
	for i, d := range docs {
		items[i] = Labeled{Name: d.Name, Label: d.BoundedContext}
	}
	r.log.Info("rationalizing labels", "concepts", len(items))
	if labels, err := Rationalize(ctx, r.oracle, items, r.log); err != nil {
		r.soft(StageRationalize, r.opts.Name, err)
	} else {
		docs = ApplyLabels(docs, labels)
		r.rep.ConceptDocs = 0
		for _, d := range docs {
			r.writeConceptDoc(d.Name, "", d)
		}
	}

	overview, err := GenerateOverview(ctx, r.oracle, r.opts.Root, conv.Concepts)
	if err != nil {
		r.soft(StageOverview, r.opts.Name, err)
	}

	path, err := artifact.WriteLegacy(r.opts.OutDir, artifact.LegacyDocument{
		RepoRoot:        r.opts.Root,
		GeneratedAt:     r.now().UTC(),
		ProjectOverview: overview,
		Concepts:        docs,
	})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	r.rep.ArtifactPath = path
	r.rep.Models = 1
	r.rep.Concepts = len(docs)
	r.log.Info("concepts written", "path", path)

	r.publish()
	return nil
}

// clean removes the previous artifacts once discovery has succeeded, so a
// failed run leaves the last good output untouched.
func (r *run) clean() error {
	if !r.opts.Clean {
		return nil
	}
	if err := artifact.Clean(r.opts.OutDir, r.opts.Root); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	r.log.Info("previous output removed", "dir", r.opts.OutDir)
	return nil
}

// writeConceptDoc writes doc to the file reserved for key.
func (r *run) writeConceptDoc(key, prefix string, doc graph.ConceptDoc) {
	if _, err := r.docs.Write(key, prefix, doc); err != nil {
		r.soft(StagePersist, doc.Name, err)
		return
	}
	r.rep.ConceptDocs++
}

func (r *run) publish() {
	if !r.opts.Publish || r.opts.RegistryPath == "" {
		return
	}
	entry := artifact.RegistryEntry{
		ID:        r.rep.ProjectID,
		Name:      r.rep.ProjectName,
		Path:      r.rep.ArtifactPath,
		UpdatedAt: r.now().UTC(),
	}
	if abs, err := filepath.Abs(entry.Path); err == nil {
		entry.Path = abs
	}
	if err := artifact.Publish(r.opts.RegistryPath, entry); err != nil {
		r.soft(StagePublish, r.opts.RegistryPath, err)
		return
	}
	r.rep.Published = true
	r.log.Info("project published", "registry", r.opts.RegistryPath, "id", entry.ID)
}

func (r *run) beginHistory() {
	if r.History == nil {
		return
	}
	err := r.History.BeginRun(store.Run{
		ID:          r.rep.RunID,
		ProjectID:   r.rep.ProjectID,
		ProjectName: r.rep.ProjectName,
		RepoPath:    r.rep.RepoPath,
		Shape:       string(r.rep.Shape),
		StartedAt:   r.rep.StartedAt,
	})
	if err != nil {
		r.log.Warn("recording run start failed", "error", err)
	}
}

func (r *run) finishHistory(runErr error) {
	if r.History == nil {
		return
	}
	finished := r.now()
	rec := store.Run{
		ID:            r.rep.RunID,
		ProjectName:   r.rep.ProjectName,
		Status:        store.StatusCompleted,
		FinishedAt:    &finished,
		Concepts:      r.rep.Concepts,
		Relationships: r.rep.Relationships,
		Views:         r.rep.Views,
		Stories:       r.rep.Stories,
		OracleCalls:   r.rep.OracleCalls,
		SoftFailures:  len(r.rep.Diagnostics),
		ArtifactPath:  r.rep.ArtifactPath,
	}
	if runErr != nil {
		rec.Status = store.StatusFailed
		rec.Error = runErr.Error()
	}
	if err := r.History.FinishRun(rec); err != nil {
		r.log.Warn("recording run result failed", "error", err)
	}
}
