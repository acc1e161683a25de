package synth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/conceptmap/internal/artifact"
	"github.com/julianshen/conceptmap/internal/oracle/oracletest"
	"github.com/julianshen/conceptmap/internal/store"
)

type fakeHistory struct {
	begun    []store.Run
	finished []store.Run
}

func (h *fakeHistory) BeginRun(r store.Run) error {
	h.begun = append(h.begun, r)
	return nil
}

func (h *fakeHistory) FinishRun(r store.Run) error {
	h.finished = append(h.finished, r)
	return nil
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/order/order.ts":     "export class Order {}\nexport function placeOrder() {}\n",
		"src/billing/invoice.ts": "export class Invoice {}\n",
		"README.md":              "# shop\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func modelStub() *oracletest.Stub {
	return &oracletest.Stub{Rules: []oracletest.Rule{
		{Stage: StageDiscover, Reply: oracletest.Text(`{"summary": "A shop.", "models": [{"id": "sales", "title": "Sales", "concepts": [
			{"id": "order", "label": "Order", "category": "thing", "evidence": [{"file": "order/order.ts", "symbol": "Order", "line": 1}]},
			{"id": "invoice", "label": "Invoice", "category": "thing", "evidence": [{"file": "src/billing/invoice.ts"}]},
			{"id": "refund", "label": "Refund", "category": "activity", "evidence": [{"file": "nowhere.ts"}]}
		]}]}`)},
		{Stage: StageEnrich, Match: `"id": "order"`, Reply: oracletest.Text(`{"aliases": ["Purchase"],
			"relationships": [{"id": "order-invoice", "to": "invoice", "phrase": "is billed by", "category": "uses"}],
			"rules": [{"id": "order-total", "text": "An order total is never negative.", "kind": "invariant"}]}`)},
		{Stage: StageEnrich, Match: `"id": "invoice"`, Reply: oracletest.Fail(oracletest.ErrTransport)},
		{Stage: StageViews, Reply: oracletest.Text(`{"views": [{"id": "billing", "name": "Billing",
			"conceptIds": ["order", "invoice", "phantom"], "relationshipIds": ["order-invoice"]}]}`)},
		{Stage: StageStories, Reply: oracletest.Fail(oracletest.ErrTransport)},
		{Stage: StageRationalize, Reply: oracletest.Text(`{"Commerce": ["sales/Order", "sales/Invoice"]}`)},
	}}
}

func TestPipelineModelShape(t *testing.T) {
	root := writeRepo(t)
	out := filepath.Join(t.TempDir(), "out")
	registry := filepath.Join(t.TempDir(), "registry.json")
	history := &fakeHistory{}
	stub := modelStub()

	p := &Pipeline{Oracle: stub, History: history, Now: fixedNow}
	rep, err := p.Run(context.Background(), Options{
		Root:         root,
		OutDir:       out,
		ConceptDocs:  true,
		Rationalize:  true,
		Publish:      true,
		RegistryPath: registry,
		RunID:        "run-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, ProjectID(root), rep.ProjectID)
	assert.Equal(t, filepath.Base(root), rep.ProjectName)
	assert.Equal(t, 2, rep.Files)
	assert.Equal(t, 3, rep.Declarations)
	assert.Equal(t, 1, rep.Models)
	assert.Equal(t, 3, rep.Concepts)
	assert.Equal(t, 1, rep.Relationships)
	assert.Equal(t, 1, rep.Rules)
	assert.Equal(t, 1, rep.Views)
	assert.Equal(t, 0, rep.Stories)
	assert.Equal(t, 6, rep.OracleCalls)
	assert.Equal(t, 1, rep.Dangling)
	assert.Equal(t, 3, rep.ConceptDocs)
	assert.True(t, rep.Published)

	stages := map[string]bool{}
	for _, d := range rep.Diagnostics {
		stages[d.Stage] = true
	}
	assert.Equal(t, map[string]bool{StageEnrich: true, StageStories: true}, stages)
	assert.NotEmpty(t, rep.Violations)

	project, err := artifact.ReadProject(rep.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, rep.ProjectID, project.ID)
	assert.Equal(t, "A shop.", project.Summary)
	assert.Equal(t, fixedNow(), project.GeneratedAt)
	m := project.Models[0]
	assert.Equal(t, []string{"order", "invoice"}, m.Views[0].ConceptIDs)
	assert.NotNil(t, m.StoryViews)
	assert.Empty(t, m.StoryViews)
	for _, c := range m.Concepts {
		assert.Nil(t, c.Evidence, c.ID)
	}
	assert.Equal(t, "Commerce", m.Concepts[0].BoundedContext)
	assert.Equal(t, "Sales", m.Concepts[2].BoundedContext)
	assert.Equal(t, []string{"Purchase"}, m.Concepts[0].Aliases)

	assert.Contains(t, oracletest.UserContent(stub.CallsFor(StageRationalize)[0]), "- sales/Order: Sales")

	doc, err := os.ReadFile(filepath.Join(out, artifact.ConceptsDir, "sales--order.md"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "order/order.ts:1 (Order)")
	assert.Contains(t, string(doc), "An order total is never negative.")

	reg, err := artifact.LoadRegistry(registry)
	require.NoError(t, err)
	require.Len(t, reg.Projects, 1)
	assert.Equal(t, rep.ProjectID, reg.Projects[0].ID)
	assert.Equal(t, rep.ArtifactPath, reg.Projects[0].Path)

	require.Len(t, history.begun, 1)
	require.Len(t, history.finished, 1)
	assert.Equal(t, store.StatusCompleted, history.finished[0].Status)
	assert.Equal(t, 6, history.finished[0].OracleCalls)
	assert.Equal(t, 2, history.finished[0].SoftFailures)
}

func TestPipelineRerunUpsertsRegistry(t *testing.T) {
	root := writeRepo(t)
	registry := filepath.Join(t.TempDir(), "registry.json")
	opts := Options{Root: root, OutDir: filepath.Join(t.TempDir(), "out"), Publish: true, RegistryPath: registry}

	for i := 0; i < 2; i++ {
		_, err := (&Pipeline{Oracle: modelStub(), Now: fixedNow}).Run(context.Background(), opts)
		require.NoError(t, err)
	}

	reg, err := artifact.LoadRegistry(registry)
	require.NoError(t, err)
	assert.Len(t, reg.Projects, 1)
}

func TestPipelineDiscoveryFailureWritesNothing(t *testing.T) {
	root := writeRepo(t)
	out := filepath.Join(t.TempDir(), "out")
	registry := filepath.Join(t.TempDir(), "registry.json")
	history := &fakeHistory{}
	stub := &oracletest.Stub{Rules: []oracletest.Rule{
		{Stage: StageDiscover, Reply: oracletest.Text(`{"models": "not a list"}`)},
	}}
	previous := filepath.Join(out, artifact.ProjectFile)
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(previous, []byte(`{"id":"previous"}`), 0o644))

	rep, err := (&Pipeline{Oracle: stub, History: history}).Run(context.Background(), Options{
		Root: root, OutDir: out, Publish: true, RegistryPath: registry, ConceptDocs: true, Clean: true,
	})
	require.Error(t, err)
	assert.Nil(t, rep)

	kept, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"previous"}`, string(kept))
	assert.NoDirExists(t, filepath.Join(out, artifact.ConceptsDir))
	assert.NoFileExists(t, registry)
	assert.Len(t, stub.Calls(), 1)
	require.Len(t, history.finished, 1)
	assert.Equal(t, store.StatusFailed, history.finished[0].Status)
	assert.NotEmpty(t, history.finished[0].Error)
}

func TestPipelineCleanKeepsPreviousOutputWhenDiscoveryFails(t *testing.T) {
	root := writeRepo(t)
	out := filepath.Join(t.TempDir(), "out")
	registry := filepath.Join(t.TempDir(), "registry.json")
	opts := Options{Root: root, OutDir: out, ConceptDocs: true, Publish: true, RegistryPath: registry}

	first, err := (&Pipeline{Oracle: modelStub(), Now: fixedNow}).Run(context.Background(), opts)
	require.NoError(t, err)
	previous, err := os.ReadFile(first.ArtifactPath)
	require.NoError(t, err)

	failing := &oracletest.Stub{Rules: []oracletest.Rule{
		{Stage: StageDiscover, Reply: oracletest.Fail(oracletest.ErrTransport)},
	}}
	opts.Clean = true
	_, err = (&Pipeline{Oracle: failing}).Run(context.Background(), opts)
	require.Error(t, err)

	kept, err := os.ReadFile(first.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, previous, kept)
	assert.FileExists(t, filepath.Join(out, artifact.ConceptsDir, "sales--order.md"))

	reg, err := artifact.LoadRegistry(registry)
	require.NoError(t, err)
	require.Len(t, reg.Projects, 1)
	assert.FileExists(t, reg.Projects[0].Path)
}

func TestPipelineCleanRemovesStaleDocsAfterDiscovery(t *testing.T) {
	root := writeRepo(t)
	out := filepath.Join(t.TempDir(), "out")
	stale := filepath.Join(out, artifact.ConceptsDir, "retired.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := (&Pipeline{Oracle: modelStub(), Now: fixedNow}).Run(context.Background(), Options{
		Root: root, OutDir: out, ConceptDocs: true, Clean: true,
	})
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(out, artifact.ProjectFile))
	assert.FileExists(t, filepath.Join(out, artifact.ConceptsDir, "sales--order.md"))
}

func TestPipelineCleanRefusesRepositoryBeforeCallingOracle(t *testing.T) {
	root := writeRepo(t)
	stub := modelStub()
	_, err := (&Pipeline{Oracle: stub}).Run(context.Background(), Options{
		Root: root, OutDir: filepath.Dir(root), Clean: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to clean")
	assert.Empty(t, stub.Calls())
}

func TestPipelineMissingRepository(t *testing.T) {
	stub := &oracletest.Stub{}
	_, err := (&Pipeline{Oracle: stub}).Run(context.Background(), Options{
		Root:   filepath.Join(t.TempDir(), "nope"),
		OutDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Empty(t, stub.Calls())
}

func TestPipelineRejectsUnknownShape(t *testing.T) {
	_, err := (&Pipeline{Oracle: &oracletest.Stub{}}).Run(context.Background(), Options{Root: t.TempDir(), Shape: "graph"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown shape")
}

func TestPipelineFlatShape(t *testing.T) {
	root := writeRepo(t)
	out := filepath.Join(t.TempDir(), "out")
	stub := &oracletest.Stub{Rules: []oracletest.Rule{
		{Stage: StageConverge, Match: "do NOT repeat", Reply: oracletest.Text(`{"concepts": [{"name": "Order"}]}`)},
		{Stage: StageConverge, Reply: oracletest.Text(`{"concepts": [
			{"name": "Order", "boundedContext": "Sales", "summary": "A purchase.", "evidence": [{"file": "order/order.ts", "line": 1}]},
			{"name": "Invoice", "boundedContext": "Billing", "summary": "A bill.", "evidence": [{"file": "billing/invoice.ts"}]}
		]}`)},
		{Stage: StageConceptDoc, Match: `"Order"`, Reply: oracletest.Text(`{"definition": "Something bought.", "invariants": ["Total is positive."]}`)},
		{Stage: StageConceptDoc, Reply: oracletest.Fail(oracletest.ErrTransport)},
		{Stage: StageRationalize, Reply: oracletest.Text(`{"Commerce": ["Order", "Invoice"]}`)},
		{Stage: StageOverview, Reply: oracletest.Text("  A small shop.  ")},
	}}

	rep, err := (&Pipeline{Oracle: stub, Now: fixedNow}).Run(context.Background(), Options{
		Root: root, OutDir: out, Shape: ShapeFlat, MaxIterations: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Iterations)
	assert.True(t, rep.Converged)
	assert.Equal(t, 2, rep.Concepts)
	assert.Equal(t, 2, rep.ConceptDocs)
	assert.Equal(t, 2+2+1+1, rep.OracleCalls)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, StageConceptDoc, rep.Diagnostics[0].Stage)
	assert.Equal(t, filepath.Join(out, artifact.LegacyFile), rep.ArtifactPath)

	content, err := os.ReadFile(filepath.Join(out, artifact.ConceptsDir, "invoice.md"))
	require.NoError(t, err)
	front, err := artifact.ParseFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, "Commerce", front.BoundedContext)
	assert.Equal(t, "A bill.", front.Summary)

	content, err = os.ReadFile(filepath.Join(out, artifact.ConceptsDir, "order.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Something bought.")
	assert.Contains(t, string(content), "order/order.ts:1")

	data, err := os.ReadFile(rep.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"projectOverview": "A small shop."`)
	assert.Contains(t, string(data), `"boundedContext": "Commerce"`)
}
