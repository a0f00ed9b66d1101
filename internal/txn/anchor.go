package txn

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/renbuf/renbuf/internal/logging"
	"github.com/renbuf/renbuf/model"
)

// AnchorHost is what the anchor strategy needs from the editor host.
// A batch rename with no visible resource attached may never make it
// into the host's undo history, so the chain manufactures one.
type AnchorHost interface {
	// IsAnyVisible reports whether any of the paths is currently shown.
	IsAnyVisible(paths []string) bool
	// OpenBriefly shows path without stealing focus and schedules a
	// short-delay close. The close timer must not block the caller.
	OpenBriefly(path string) error
	// ShowScratch briefly shows a throwaway document with the given
	// lines and schedules its close.
	ShowScratch(title string, lines []string) error
}

// AnchorChain is an ordered list of anchor attempts, iterated until one
// succeeds or the list is exhausted. The chain as a whole never fails:
// every problem degrades to a logged warning.
type AnchorChain struct {
	host      AnchorHost
	preferred string
}

// NewAnchorChain creates the chain for a host.
func NewAnchorChain(host AnchorHost) *AnchorChain {
	return &AnchorChain{host: host}
}

// Prefer records an advisory anchor target, typically the one that
// anchored the previous batch, to be tried before the fallbacks.
func (c *AnchorChain) Prefer(path string) {
	c.preferred = path
}

// Anchor runs the fallback chain for a completed batch and returns the
// path (or scratch title) that ended up anchoring it, or "".
func (c *AnchorChain) Anchor(ops []model.RenameOperation) (anchored string) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Warn("anchor chain panicked", zap.Any("panic", r))
			anchored = ""
		}
	}()

	if c.host == nil || len(ops) == 0 {
		return ""
	}

	all := make([]string, 0, 2*len(ops))
	for _, op := range ops {
		all = append(all, op.FromPath, op.ToPath)
	}
	// An already-visible file is its own anchor.
	if c.host.IsAnyVisible(all) {
		return ""
	}

	if c.preferred != "" {
		if err := c.host.OpenBriefly(c.preferred); err == nil {
			return c.preferred
		}
		logging.L().Debug("preferred anchor unavailable",
			zap.String("path", c.preferred))
	}

	for _, op := range ops {
		if err := c.host.OpenBriefly(op.ToPath); err != nil {
			logging.L().Warn("could not open destination as anchor",
				zap.String("path", op.ToPath), zap.Error(err))
			continue
		}
		return op.ToPath
	}

	// Some hosts can still resolve the old path right after a rename.
	for _, op := range ops {
		if err := c.host.OpenBriefly(op.FromPath); err != nil {
			logging.L().Warn("could not open source as anchor",
				zap.String("path", op.FromPath), zap.Error(err))
			continue
		}
		return op.FromPath
	}

	title := fmt.Sprintf("renamed %d file(s)", len(ops))
	lines := make([]string, len(ops))
	for i, op := range ops {
		lines[i] = fmt.Sprintf("%s -> %s", op.FromPath, op.ToPath)
	}
	if err := c.host.ShowScratch(title, lines); err != nil {
		logging.L().Warn("could not show scratch anchor", zap.Error(err))
		return ""
	}
	return title
}
