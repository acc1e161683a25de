package store

import (
	"testing"
	"time"

	"github.com/julianshen/conceptmap/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStoreInMemory(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NoError(t, s.Close())
}

func TestBeginAndFinishRun(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.BeginRun(Run{
		ID: "run-1", ProjectID: "p-1", ProjectName: "shop", RepoPath: "/src/shop",
		Shape: "model", StartedAt: started,
	}))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, started.Equal(got.StartedAt))

	finished := started.Add(2 * time.Minute)
	require.NoError(t, s.FinishRun(Run{
		ID: "run-1", ProjectName: "Shop", Status: StatusCompleted, FinishedAt: &finished,
		Concepts: 12, Relationships: 20, Views: 4, Stories: 3, OracleCalls: 19, SoftFailures: 1,
		ArtifactPath: "/out/project.json",
	}))

	got, err = s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
	assert.Equal(t, "Shop", got.ProjectName)
	assert.Equal(t, 12, got.Concepts)
	assert.Equal(t, 19, got.OracleCalls)
	assert.Equal(t, "/out/project.json", got.ArtifactPath)
}

func TestFinishUnknownRun(t *testing.T) {
	s := newTestStore(t)
	err := s.FinishRun(Run{ID: "missing", Status: StatusFailed})
	require.Error(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetRun("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.BeginRun(Run{
			ID: id, ProjectID: "p", ProjectName: "n", RepoPath: "/r", Shape: "model",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := s.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordCallsAndStageFailures(t *testing.T) {
	s := newTestStore(t)
	var _ oracle.Recorder = s

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	calls := []oracle.CallRecord{
		{ID: "c1", RunID: "r", Stage: "discovery", Unit: "repo", Model: "m", Format: oracle.FormatJSON, StartedAt: base, Duration: 1500 * time.Millisecond, PromptBytes: 100, ResponseBytes: 50},
		{ID: "c2", RunID: "r", Stage: "enrich", Unit: "order", Model: "m", Format: oracle.FormatJSON, StartedAt: base.Add(time.Second), Duration: time.Second, Err: "oracle transport: boom"},
		{ID: "c3", RunID: "other", Stage: "enrich", Unit: "x", Model: "m", Format: oracle.FormatText, StartedAt: base},
	}
	for _, c := range calls {
		require.NoError(t, s.RecordCall(c))
	}

	got, err := s.CallsForRun("r")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.Equal(t, oracle.FormatJSON, got[0].Format)
	assert.Equal(t, "oracle transport: boom", got[1].Err)

	failures, err := s.StageFailures("r")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"enrich": 1}, failures)
}
