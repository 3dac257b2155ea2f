package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragserve/internal/log"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	t.Run("reads txt and md files", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "a.txt", "alpha")
		writeFile(t, dir, "b.md", "bravo")

		records := NewLoader(dir, log.NewNop()).Load()
		require.Len(t, records, 2)

		bySource := map[string]string{}
		for _, rec := range records {
			bySource[rec.Source] = rec.Text
		}
		assert.Equal(t, "alpha", bySource["a.txt"])
		assert.Equal(t, "bravo", bySource["b.md"])
	})

	t.Run("skips unsupported extensions", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "notes.txt", "keep")
		writeFile(t, dir, "data.json", `{"skip": true}`)
		writeFile(t, dir, "image.png", "skip")

		records := NewLoader(dir, log.NewNop()).Load()
		require.Len(t, records, 1)
		assert.Equal(t, "notes.txt", records[0].Source)
	})

	t.Run("skips README.md", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "README.md", "about this folder")
		writeFile(t, dir, "doc.md", "content")

		records := NewLoader(dir, log.NewNop()).Load()
		require.Len(t, records, 1)
		assert.Equal(t, "doc.md", records[0].Source)
	})

	t.Run("missing folder yields empty result", func(t *testing.T) {
		t.Parallel()
		records := NewLoader(filepath.Join(t.TempDir(), "nope"), log.NewNop()).Load()
		assert.Empty(t, records)
	})

	t.Run("does not recurse into subdirectories", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		sub := filepath.Join(dir, "nested")
		require.NoError(t, os.Mkdir(sub, 0o755))
		writeFile(t, sub, "deep.txt", "hidden")
		writeFile(t, dir, "top.txt", "visible")

		records := NewLoader(dir, log.NewNop()).Load()
		require.Len(t, records, 1)
		assert.Equal(t, "top.txt", records[0].Source)
	})
}
