package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0644))
	}
}

func TestWalkerIncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"nvidia-10k.txt",
		"apple/apple-10k.md",
		"apple/notes.csv",
		"drafts/old.txt",
		".cache/hidden.txt",
	)

	w := NewWalker([]string{"**/*.txt", "**/*.md"}, []string{"drafts/**"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
		assert.Positive(t, f.Size)
	}
	assert.Equal(t, []string{"apple/apple-10k.md", "nvidia-10k.txt"}, rel)
}

func TestWalkerDeduplicatesOverlappingPatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt")

	files, err := NewWalker([]string{"*.txt", "**/*.txt"}, nil).Walk(root)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestWalkerDefaultIncludesEverything(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b/c.pdf")

	files, err := NewWalker(nil, nil).Walk(root)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestReadFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "x.txt")
	s, err := ReadFile(filepath.Join(root, "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x.txt", s)
}
