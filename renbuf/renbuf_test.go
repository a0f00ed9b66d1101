package renbuf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renbuf/renbuf/internal/plan"
	"github.com/renbuf/renbuf/renbuf"
)

// chdirTemp runs the test inside a fresh temp directory so the state
// directory lands there and not in the repository.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(wd))
	})
	return dir
}

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], []byte(name), 0o644))
	}
	return paths
}

func TestRenameEndToEnd(t *testing.T) {
	dir := chdirTemp(t)
	paths := writeFiles(t, dir, "a.txt", "b.txt", "c.txt")

	summary, err := renbuf.Rename(paths, []string{"a1.txt", "b.txt", "c1.txt"}, renbuf.Options{})
	require.NoError(t, err)

	require.Len(t, summary.Renamed, 2)
	require.Equal(t, 1, summary.Skipped)
	require.Empty(t, summary.Failed)

	require.FileExists(t, filepath.Join(dir, "a1.txt"))
	require.FileExists(t, filepath.Join(dir, "b.txt"))
	require.FileExists(t, filepath.Join(dir, "c1.txt"))
	require.NoFileExists(t, filepath.Join(dir, "a.txt"))
	require.NoFileExists(t, filepath.Join(dir, "c.txt"))
}

func TestRenameSwapIsRejected(t *testing.T) {
	dir := chdirTemp(t)
	paths := writeFiles(t, dir, "x.txt", "y.txt")

	// A pairwise swap looks like two no-op-adjacent renames but each
	// target is a live collision with the other source.
	_, err := renbuf.Rename(paths, []string{"y.txt", "x.txt"}, renbuf.Options{})

	var verr *plan.ValidationError
	require.ErrorAs(t, err, &verr)

	// Nothing was touched.
	require.FileExists(t, filepath.Join(dir, "x.txt"))
	require.FileExists(t, filepath.Join(dir, "y.txt"))
	require.Equal(t, "x.txt", readFile(t, filepath.Join(dir, "x.txt")))
	require.Equal(t, "y.txt", readFile(t, filepath.Join(dir, "y.txt")))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRenameCountMismatchHasNoSideEffects(t *testing.T) {
	dir := chdirTemp(t)
	paths := writeFiles(t, dir, "a.txt", "b.txt")

	_, err := renbuf.Rename(paths, []string{"a1.txt"}, renbuf.Options{})
	require.ErrorIs(t, err, plan.ErrLineCountMismatch)

	require.FileExists(t, filepath.Join(dir, "a.txt"))
	require.FileExists(t, filepath.Join(dir, "b.txt"))
}

func TestRenameAllBlankChangesNothing(t *testing.T) {
	dir := chdirTemp(t)
	paths := writeFiles(t, dir, "a.txt", "b.txt")

	summary, err := renbuf.Rename(paths, []string{"", ""}, renbuf.Options{})
	require.NoError(t, err)
	require.Empty(t, summary.Renamed)
	require.Equal(t, 2, summary.Skipped)
	require.Equal(t, "No names were changed.", summary.Message)
}

func TestRenameUniquifyOption(t *testing.T) {
	dir := chdirTemp(t)
	paths := writeFiles(t, dir, "a.txt", "b.txt")

	summary, err := renbuf.Rename(paths[:1], []string{"b.txt"}, renbuf.Options{Uniquify: true})
	require.NoError(t, err)
	require.Equal(t, []string{"b_1.txt"}, summary.Renamed)
	require.FileExists(t, filepath.Join(dir, "b_1.txt"))
}
