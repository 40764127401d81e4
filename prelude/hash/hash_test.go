package hash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFileMatchesHashBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "module.pact")
	content := []byte("(module coin GOVERNANCE)")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	h := New(16)
	sum, err := h.HashFile(path)
	require.NoError(t, err)
	require.Equal(t, HashBytes(content), sum)
}

func TestHashFileMemoizesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "module.pact")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	h := New(16)
	first, err := h.HashFile(path)
	require.NoError(t, err)

	// Overwrite the file without invalidating: memoized value still wins.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	stale, err := h.HashFile(path)
	require.NoError(t, err)
	require.Equal(t, first, stale)

	h.Invalidate(path)
	fresh, err := h.HashFile(path)
	require.NoError(t, err)
	require.Equal(t, HashBytes([]byte("v2")), fresh)
	require.NotEqual(t, first, fresh)
}

func TestHashFileMissingReturnsError(t *testing.T) {
	h := New(16)
	_, err := h.HashFile(filepath.Join(t.TempDir(), "missing.pact"))
	require.Error(t, err)
}
