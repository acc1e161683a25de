package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "Here you go:\n```json\n{\"a\": 1}\n```\n", `{"a": 1}`},
		{"prose around", `Sure! {"a": [1, 2]} Hope that helps.`, `{"a": [1, 2]}`},
		{"trailing comma", "{\"a\": [1, 2,],}", `{"a": [1, 2]}`},
		{"comment", "{\n  \"url\": \"http://x.y\", // the url\n  \"b\": 2\n}", "{\n  \"url\": \"http://x.y\",\n  \"b\": 2\n}"},
		{"none", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.content))
		})
	}
}

func TestParseJSONErrors(t *testing.T) {
	_, err := ParseJSON("nothing")
	require.Error(t, err)
	assert.True(t, IsSchema(err))

	_, err = ParseJSON(`{"a": }`)
	require.Error(t, err)
	assert.True(t, IsSchema(err))

	raw, err := ParseJSON("```\n{\"ok\":true}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}
