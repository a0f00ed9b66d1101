package txn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renbuf/renbuf/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApplyRenameTransactionEmpty(t *testing.T) {
	require.NoError(t, NewFSPrimitive().ApplyRenameTransaction(nil))
}

func TestApplyRenameTransaction(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "c.txt"), "gamma")

	err := NewFSPrimitive().ApplyRenameTransaction([]model.RenamePair{
		{From: filepath.Join(dir, "a.txt"), To: filepath.Join(dir, "a1.txt")},
		{From: filepath.Join(dir, "c.txt"), To: filepath.Join(dir, "c1.txt")},
	})
	require.NoError(t, err)

	require.Equal(t, "alpha", readFile(t, filepath.Join(dir, "a1.txt")))
	require.Equal(t, "gamma", readFile(t, filepath.Join(dir, "c1.txt")))
	require.NoFileExists(t, filepath.Join(dir, "a.txt"))
	require.NoFileExists(t, filepath.Join(dir, "c.txt"))
}

func TestApplyRenameTransactionSwap(t *testing.T) {
	// The temp-name detour makes a direct swap possible in one batch.
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.txt"), "ex")
	writeFile(t, filepath.Join(dir, "y.txt"), "why")

	err := NewFSPrimitive().ApplyRenameTransaction([]model.RenamePair{
		{From: filepath.Join(dir, "x.txt"), To: filepath.Join(dir, "y.txt")},
		{From: filepath.Join(dir, "y.txt"), To: filepath.Join(dir, "x.txt")},
	})
	require.NoError(t, err)

	require.Equal(t, "why", readFile(t, filepath.Join(dir, "x.txt")))
	require.Equal(t, "ex", readFile(t, filepath.Join(dir, "y.txt")))
}

func TestApplyRenameTransactionRollsBackOnPhaseOneFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")

	err := NewFSPrimitive().ApplyRenameTransaction([]model.RenamePair{
		{From: filepath.Join(dir, "a.txt"), To: filepath.Join(dir, "a1.txt")},
		{From: filepath.Join(dir, "ghost.txt"), To: filepath.Join(dir, "g1.txt")},
	})
	require.Error(t, err)

	// The first file is back where it started.
	require.Equal(t, "alpha", readFile(t, filepath.Join(dir, "a.txt")))
	require.NoFileExists(t, filepath.Join(dir, "a1.txt"))
}

func TestApplyRenameTransactionRollsBackOnPhaseTwoFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "b.txt"), "beta")

	err := NewFSPrimitive().ApplyRenameTransaction([]model.RenamePair{
		{From: filepath.Join(dir, "a.txt"), To: filepath.Join(dir, "a1.txt")},
		// The destination directory does not exist, so phase 2 fails.
		{From: filepath.Join(dir, "b.txt"), To: filepath.Join(dir, "nosuch", "b1.txt")},
	})
	require.Error(t, err)

	// Both files are back, including the one that had already landed.
	require.Equal(t, "alpha", readFile(t, filepath.Join(dir, "a.txt")))
	require.Equal(t, "beta", readFile(t, filepath.Join(dir, "b.txt")))
	require.NoFileExists(t, filepath.Join(dir, "a1.txt"))
}
