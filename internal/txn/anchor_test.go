package txn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renbuf/renbuf/model"
)

type fakeHost struct {
	visible     bool
	openErr     error
	scratchErr  error
	opened      []string
	scratchGot  []string
	panicOnOpen bool
}

func (h *fakeHost) IsAnyVisible(paths []string) bool { return h.visible }

func (h *fakeHost) OpenBriefly(path string) error {
	if h.panicOnOpen {
		panic("host gone")
	}
	if h.openErr != nil {
		return h.openErr
	}
	h.opened = append(h.opened, path)
	return nil
}

func (h *fakeHost) ShowScratch(title string, lines []string) error {
	if h.scratchErr != nil {
		return h.scratchErr
	}
	h.scratchGot = lines
	return nil
}

var ops = []model.RenameOperation{
	{FromPath: "/d/a.txt", ToPath: "/d/a1.txt"},
	{FromPath: "/d/b.txt", ToPath: "/d/b1.txt"},
}

func TestAnchorSkipsWhenAlreadyVisible(t *testing.T) {
	host := &fakeHost{visible: true}
	got := NewAnchorChain(host).Anchor(ops)
	require.Empty(t, got)
	require.Empty(t, host.opened)
}

func TestAnchorOpensFirstDestination(t *testing.T) {
	host := &fakeHost{}
	got := NewAnchorChain(host).Anchor(ops)
	require.Equal(t, "/d/a1.txt", got)
	require.Equal(t, []string{"/d/a1.txt"}, host.opened)
}

func TestAnchorTriesPreferredFirst(t *testing.T) {
	host := &fakeHost{}
	chain := NewAnchorChain(host)
	chain.Prefer("/d/last.txt")
	got := chain.Anchor(ops)
	require.Equal(t, "/d/last.txt", got)
	require.Equal(t, []string{"/d/last.txt"}, host.opened)
}

func TestAnchorFallsBackToScratch(t *testing.T) {
	host := &fakeHost{openErr: errors.New("cannot open")}
	got := NewAnchorChain(host).Anchor(ops)
	require.Equal(t, "renamed 2 file(s)", got)
	require.Equal(t, []string{
		"/d/a.txt -> /d/a1.txt",
		"/d/b.txt -> /d/b1.txt",
	}, host.scratchGot)
}

func TestAnchorNeverFails(t *testing.T) {
	host := &fakeHost{
		openErr:    errors.New("cannot open"),
		scratchErr: errors.New("cannot scratch"),
	}
	require.Empty(t, NewAnchorChain(host).Anchor(ops))

	require.Empty(t, NewAnchorChain(nil).Anchor(ops))
	require.Empty(t, NewAnchorChain(host).Anchor(nil))

	panicky := &fakeHost{panicOnOpen: true}
	require.NotPanics(t, func() {
		require.Empty(t, NewAnchorChain(panicky).Anchor(ops))
	})
}
