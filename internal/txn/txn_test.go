package txn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renbuf/renbuf/internal/plan"
	"github.com/renbuf/renbuf/model"
)

type fakePrimitive struct {
	calls int
	pairs []model.RenamePair
	err   error
}

func (f *fakePrimitive) ApplyRenameTransaction(pairs []model.RenamePair) error {
	f.calls++
	f.pairs = pairs
	return f.err
}

type fakeUpdater struct {
	updates [][2]string
}

func (f *fakeUpdater) UpdateAfterRename(oldPath, newPath string) {
	f.updates = append(f.updates, [2]string{oldPath, newPath})
}

func TestExecuteEmptyPlanDoesNoIO(t *testing.T) {
	primitive := &fakePrimitive{}
	renamer := NewRenamer(primitive, &fakeUpdater{}, nil)

	result, anchor := renamer.Execute(&plan.Plan{})
	require.Equal(t, model.RenameResult{}, result)
	require.Empty(t, anchor)
	require.Zero(t, primitive.calls)

	result, _ = renamer.Execute(nil)
	require.Equal(t, model.RenameResult{}, result)
	require.Zero(t, primitive.calls)
}

func TestExecutePreservesSkippedCount(t *testing.T) {
	primitive := &fakePrimitive{}
	renamer := NewRenamer(primitive, &fakeUpdater{}, nil)

	result, _ := renamer.Execute(&plan.Plan{Skipped: 3})
	require.Equal(t, 3, result.Skipped)
	require.Zero(t, primitive.calls)
}

func TestExecuteSuccessUpdatesSession(t *testing.T) {
	primitive := &fakePrimitive{}
	updater := &fakeUpdater{}
	renamer := NewRenamer(primitive, updater, nil)

	p := &plan.Plan{Operations: []model.RenameOperation{
		{FromPath: "/d/a.txt", ToPath: "/d/a1.txt"},
		{FromPath: "/d/c.txt", ToPath: "/d/c1.txt"},
	}, Skipped: 1}

	result, _ := renamer.Execute(p)
	require.Equal(t, 2, result.Succeeded)
	require.Empty(t, result.Failed)
	require.Equal(t, 1, result.Skipped)

	require.Equal(t, 1, primitive.calls)
	require.Equal(t, []model.RenamePair{
		{From: "/d/a.txt", To: "/d/a1.txt"},
		{From: "/d/c.txt", To: "/d/c1.txt"},
	}, primitive.pairs)

	require.Equal(t, [][2]string{
		{"/d/a.txt", "/d/a1.txt"},
		{"/d/c.txt", "/d/c1.txt"},
	}, updater.updates)
}

func TestExecuteFailureMarksEveryOperationFailed(t *testing.T) {
	boom := errors.New("host refused")
	primitive := &fakePrimitive{err: boom}
	updater := &fakeUpdater{}
	renamer := NewRenamer(primitive, updater, nil)

	p := &plan.Plan{Operations: []model.RenameOperation{
		{FromPath: "/d/p", ToPath: "/d/q"},
		{FromPath: "/d/r", ToPath: "/d/s"},
	}}

	result, anchor := renamer.Execute(p)
	require.Zero(t, result.Succeeded)
	require.Empty(t, anchor)
	require.Len(t, result.Failed, 2)
	require.Equal(t, "/d/p", result.Failed[0].Path)
	require.Equal(t, "/d/r", result.Failed[1].Path)
	for _, f := range result.Failed {
		require.ErrorIs(t, f.Err, boom)
	}
	require.Empty(t, updater.updates)
}
