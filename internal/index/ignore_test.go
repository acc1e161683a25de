package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcherDefaultsAndOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"# comment",
		"*.tmp",
		"/generated/",
		"docs/**/*.md",
		"!vendor/",
		"secret.ts",
	})

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{".git", true, true},
		{"node_modules", true, true},
		{"packages/app/node_modules", true, true},
		{"vendor", true, false}, // re-included by negation
		{"src/cache.tmp", false, true},
		{"generated", true, true},
		{"src/generated", true, false}, // anchored to the root
		{"docs/a/b/readme.md", false, true},
		{"readme.md", false, false},
		{"src/lib/secret.ts", false, true},
		{"src/types.d.ts", false, true},
		{"src/order.ts", false, false},
		{"dist", false, false}, // dir-only rule does not match files
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.ShouldIgnore(tt.path, tt.isDir), tt.path)
	}
}

func TestMatcherLastRuleWins(t *testing.T) {
	m := NewMatcher([]string{"*.ts", "!keep.ts"})
	assert.True(t, m.ShouldIgnore("a/drop.ts", false))
	assert.False(t, m.ShouldIgnore("a/keep.ts", false))

	m = NewMatcher([]string{"!keep.ts", "*.ts"})
	assert.True(t, m.ShouldIgnore("a/keep.ts", false))
}
