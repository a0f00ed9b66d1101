package editor

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderAndLines(t *testing.T) {
	s := New("true")
	t.Cleanup(func() { s.Teardown() })

	require.NoError(t, s.Render("renbuf-names", []string{"// header", "a.txt", "", "b.txt"}))

	lines, err := s.Lines()
	require.NoError(t, err)
	require.Equal(t, []string{"// header", "a.txt", "", "b.txt"}, lines)
}

func TestCommitHandlerSeesSavedLines(t *testing.T) {
	s := New("true")
	t.Cleanup(func() { s.Teardown() })

	require.NoError(t, s.Render("renbuf-names", []string{"a.txt"}))

	got := make(chan []string, 4)
	s.OnCommit(func(lines []string) error {
		got <- lines
		return nil
	})

	// "true" exits immediately; the exit path commits the file as left.
	require.NoError(t, s.Start())

	select {
	case lines := <-got:
		require.Equal(t, []string{"a.txt"}, lines)
	case <-time.After(5 * time.Second):
		t.Fatal("commit handler was never called")
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("surface never reported closed")
	}
}

func TestUnregisteredHandlerIsNotCalled(t *testing.T) {
	s := New("true")
	t.Cleanup(func() { s.Teardown() })

	require.NoError(t, s.Render("renbuf-names", []string{"a.txt"}))

	called := false
	unregister := s.OnCommit(func([]string) error {
		called = true
		return nil
	})
	unregister()

	require.NoError(t, s.Start())
	<-s.Done()
	require.False(t, called)
}

func TestClosedHandlerRuns(t *testing.T) {
	s := New("true")
	t.Cleanup(func() { s.Teardown() })

	require.NoError(t, s.Render("renbuf-names", []string{"a.txt"}))

	closed := make(chan struct{}, 1)
	s.OnClosed(func() { closed <- struct{}{} })
	s.OnCommit(func([]string) error { return errors.New("rejected") })

	require.NoError(t, s.Start())

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("closed handler was never called")
	}
}

func TestTeardownRemovesStagingArtifact(t *testing.T) {
	s := New("true")
	require.NoError(t, s.Render("renbuf-names", []string{"a.txt"}))

	path := s.path
	require.FileExists(t, path)
	require.NoError(t, s.Teardown())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestStartWithoutRenderFails(t *testing.T) {
	require.Error(t, New("true").Start())
}
