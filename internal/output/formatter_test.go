// internal/output/formatter_test.go
package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/conceptmap/internal/graph"
	"github.com/julianshen/conceptmap/internal/synth"
)

func sampleReport() *synth.Report {
	return &synth.Report{
		RunID:         "run-1",
		ProjectID:     "proj-1",
		ProjectName:   "shop",
		RepoPath:      "/repos/shop",
		Shape:         synth.ShapeModel,
		StartedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:      1500 * time.Millisecond,
		Files:         12,
		Declarations:  40,
		Models:        2,
		Concepts:      9,
		Relationships: 7,
		Rules:         3,
		Lifecycles:    1,
		Views:         3,
		Stories:       2,
		OracleCalls:   15,
		Dangling:      1,
		Diagnostics: []synth.Diagnostic{
			{Stage: synth.StageEnrich, Unit: "model-1/order", Message: "oracle: transport failure"},
		},
		Violations: []graph.Violation{
			{Subject: "model model-1", Field: "views", Count: 2, Min: 3, Max: 7},
		},
		ArtifactPath: "/repos/shop/.conceptmap/project.json",
		ConceptDocs:  9,
		Published:    true,
		RegistryPath: "/home/me/.conceptmap/registry.json",
	}
}

func TestNewFormatter(t *testing.T) {
	f, err := NewFormatter("")
	require.NoError(t, err)
	assert.IsType(t, &MarkdownFormatter{}, f)

	f, err = NewFormatter(FormatJSON)
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	_, err = NewFormatter("xml")
	assert.ErrorContains(t, err, "xml")
}

func TestWritePlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatMarkdown, false, 80))
	assert.Contains(t, buf.String(), "# shop")
	assert.NotContains(t, buf.String(), "conceptmap done")
}

func TestWriteJSONIgnoresStyling(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatJSON, true, 80))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("{")))
}

func TestWriteStyled(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatMarkdown, true, 80))
	assert.Contains(t, buf.String(), "conceptmap")
	assert.Contains(t, buf.String(), "shop")
}

func TestHeaderMentionsSoftFailures(t *testing.T) {
	r := sampleReport()
	assert.Contains(t, Header(r), "1 soft failures")

	r.Diagnostics = nil
	assert.NotContains(t, Header(r), "soft failures")
}
