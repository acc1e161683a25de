package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestScanPrefersDefaultSubdir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/order/order.ts":     "export class Order {}",
		"src/order/order.css":    "a{}",
		"src/node_modules/x.ts":  "x",
		"scripts/build.ts":       "build",
		"src/billing/invoice.ts": "export interface Invoice {}",
	})

	idx, err := Scan(context.Background(), Options{Root: root, Extensions: []string{".ts"}})
	require.NoError(t, err)

	assert.Equal(t, "src", idx.Base)
	assert.Equal(t, []string{"src/billing/invoice.ts", "src/order/order.ts"}, idx.RelPaths())
	assert.Equal(t, int64(len("export class Order {}")), idx.Files[1].Size)
	assert.True(t, filepath.IsAbs(idx.Files[0].AbsPath))
}

func TestScanFallsBackToRoot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"lib/cart.ts": "export const cart = 1",
		"main.go":     "package main",
	})

	idx, err := Scan(context.Background(), Options{Root: root, Subdir: "app"})
	require.NoError(t, err)
	assert.Equal(t, "", idx.Base)
	assert.Equal(t, []string{"lib/cart.ts", "main.go"}, idx.RelPaths())
}

func TestScanHonoursGitignoreAndPatterns(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".gitignore":           "fixtures/\n*.gen.ts\n",
		".conceptmapignore":    "!keep.gen.ts\n",
		"app/a.ts":             "a",
		"app/b.gen.ts":         "b",
		"app/keep.gen.ts":      "k",
		"app/c.tsx":            "c",
		"app/fixtures/data.ts": "d",
		"app/readme.md":        "r",
	})

	idx, err := Scan(context.Background(), Options{
		Root:       root,
		Subdir:     ".",
		Extensions: []string{"**/*.{ts,tsx}"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app/a.ts", "app/c.tsx", "app/keep.gen.ts"}, idx.RelPaths())
}

func TestScanRejectsBadPattern(t *testing.T) {
	_, err := Scan(context.Background(), Options{Root: t.TempDir(), Extensions: []string{"[ts"}})
	require.Error(t, err)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), Options{Root: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestResolveEvidenceReferences(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/order/order.ts":     "export class Order {}",
		"src/billing/invoice.ts": "export class Invoice {}",
		"src/a/util.ts":          "u",
		"src/b/util.ts":          "u",
	})
	idx, err := Scan(context.Background(), Options{Root: root})
	require.NoError(t, err)

	f, ok := idx.Resolve("src/order/order.ts")
	require.True(t, ok)
	assert.Equal(t, "src/order/order.ts", f.RelPath)

	f, ok = idx.Resolve("./billing/invoice.ts")
	require.True(t, ok, "relative to the scanned subdirectory")
	assert.Equal(t, "src/billing/invoice.ts", f.RelPath)

	f, ok = idx.Resolve("invoice.ts")
	require.True(t, ok, "unique suffix")
	assert.Equal(t, "src/billing/invoice.ts", f.RelPath)

	_, ok = idx.Resolve("util.ts")
	assert.False(t, ok, "ambiguous suffix")

	_, ok = idx.Resolve(filepath.Join(root, "src", "order", "order.ts"))
	assert.True(t, ok)

	_, ok = idx.Resolve("missing.ts")
	assert.False(t, ok)

	data, err := idx.ReadFile("order/order.ts")
	require.NoError(t, err)
	assert.Equal(t, "export class Order {}", string(data))
}
