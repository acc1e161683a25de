package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagsServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"models": [
					{"name": "llama3.1:latest", "size": 4294967296, "modified_at": "2026-02-25T10:00:00Z", "digest": "sha256:abc123"},
					{"name": "qwen2.5:7b", "size": 3758096384, "modified_at": "2026-02-20T08:00:00Z", "digest": "sha256:def456"}
				]
			}`))
		case "/api/version":
			w.Write([]byte(`{"version":"0.5.1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestClient_ListModels(t *testing.T) {
	srv := tagsServer(t)
	defer srv.Close()

	models, err := NewClient(srv.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.1:latest", models[0].Name)
	assert.Equal(t, int64(3758096384), models[1].Size)
}

func TestClient_VersionAndIsRunning(t *testing.T) {
	srv := tagsServer(t)
	defer srv.Close()

	c := NewClient(srv.URL)
	ver, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.5.1", ver)
	assert.True(t, c.IsRunning(context.Background()))
}

func TestClient_IsRunningFalseWhenDown(t *testing.T) {
	srv := tagsServer(t)
	url := srv.URL
	srv.Close()

	assert.False(t, NewClient(url).IsRunning(context.Background()))
}

func TestClient_CheckModel(t *testing.T) {
	srv := tagsServer(t)
	defer srv.Close()

	c := NewClient(srv.URL)
	assert.NoError(t, c.CheckModel(context.Background(), "llama3.1"))
	assert.NoError(t, c.CheckModel(context.Background(), "qwen2.5:7b"))

	err := c.CheckModel(context.Background(), "mistral")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull mistral")
}
