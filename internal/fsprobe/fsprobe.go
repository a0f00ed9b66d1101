// Package fsprobe wraps the filesystem checks the planner and session
// need: existence, directory creation, deletion and collision breaking.
package fsprobe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/renbuf/renbuf/internal/logging"
)

// Probe performs filesystem checks. The zero value is usable.
type Probe struct{}

// New returns a Probe.
func New() *Probe {
	return &Probe{}
}

// Exists reports whether path exists. An I/O error distinct from
// "not exist" is returned as-is: collapsing it to false could let a
// later rename overwrite a file the probe simply failed to see.
func (p *Probe) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// EnsureDirectory creates path and any missing parents. Creation is a
// staging convenience, so failure is logged and swallowed.
func (p *Probe) EnsureDirectory(path string) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.L().Warn("could not create directory",
			zap.String("path", path), zap.Error(err))
	}
}

// DeleteIfExists removes path if present and reports whether anything
// was deleted.
func (p *Probe) DeleteIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Uniquify returns path unchanged if it is free, otherwise appends _1,
// _2, ... before the extension until a free path is found. It is a
// fallback collision breaker only; the default policy is to reject
// colliding targets outright.
func (p *Probe) Uniquify(path string) string {
	exists, err := p.Exists(path)
	if err != nil {
		logging.L().Warn("existence probe failed during uniquify",
			zap.String("path", path), zap.Error(err))
		return path
	}
	if !exists {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		exists, err := p.Exists(candidate)
		if err != nil {
			logging.L().Warn("existence probe failed during uniquify",
				zap.String("path", candidate), zap.Error(err))
			return candidate
		}
		if !exists {
			return candidate
		}
	}
}

// SamePathFold reports whether two paths are equal under a
// case-insensitive comparison. Used to tell a case-only rename of one
// file apart from a genuine collision with another.
func SamePathFold(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}
