// Package session owns the set of files under edit and the lifecycle of
// the single live rename session.
package session

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renbuf/renbuf/internal/fsprobe"
	"github.com/renbuf/renbuf/internal/logging"
	"github.com/renbuf/renbuf/model"
)

var (
	// ErrNoValidFiles is returned when none of the selected entries
	// still exist at staging time.
	ErrNoValidFiles = errors.New("no valid files to rename")
	// ErrSessionBusy is returned when a session is already live.
	ErrSessionBusy = errors.New("a rename session is already in progress")
	// ErrCommitInFlight is returned when a commit is attempted while
	// another one is still running.
	ErrCommitInFlight = errors.New("a commit is already in flight")
	// ErrNoSession is returned for operations that need a live session.
	ErrNoSession = errors.New("no rename session is active")
)

// Session holds the files staged for renaming. Exactly one session may
// be live at a time; the Manager enforces that.
type Session struct {
	ID        string
	Files     []model.StagedFile
	BufferID  string
	CreatedAt time.Time

	cleanups []func() error
}

// OnClear registers a best-effort cleanup run when the session is
// cleared: closing the staging surface, deleting a staging artifact.
// Failures never prevent the session from being considered cleared.
func (s *Session) OnClear(fn func() error) {
	s.cleanups = append(s.cleanups, fn)
}

// Manager owns the singleton session and serializes creation and commit
// so at most one batch operation is in flight.
type Manager struct {
	probe *fsprobe.Probe

	mu      sync.Mutex
	current *Session

	commitMu sync.Mutex
}

// NewManager creates a session manager.
func NewManager(probe *fsprobe.Probe) *Manager {
	return &Manager{probe: probe}
}

// Create stages the selected paths into a new session. Directory entries
// are expanded to their regular files in sorted order. Entries that no
// longer exist are dropped; if nothing remains, ErrNoValidFiles is
// returned. A second create while a session is live fails with
// ErrSessionBusy rather than queuing.
func (m *Manager) Create(selection []string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrSessionBusy
	}

	var files []model.StagedFile
	for _, entry := range selection {
		abs, err := filepath.Abs(entry)
		if err != nil {
			logging.L().Warn("skipping unresolvable selection entry",
				zap.String("entry", entry), zap.Error(err))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			logging.L().Warn("skipping vanished selection entry",
				zap.String("path", abs), zap.Error(err))
			continue
		}
		if info.IsDir() {
			files = append(files, m.stageDirectory(abs)...)
			continue
		}
		files = append(files, model.NewStagedFile(abs, uuid.NewString()))
	}

	if len(files) == 0 {
		return nil, ErrNoValidFiles
	}

	m.current = &Session{
		ID:        uuid.NewString(),
		Files:     files,
		CreatedAt: time.Now(),
	}
	return m.current, nil
}

func (m *Manager) stageDirectory(dir string) []model.StagedFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.L().Warn("could not read directory",
			zap.String("dir", dir), zap.Error(err))
		return nil
	}

	var files []model.StagedFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		files = append(files, model.NewStagedFile(path, uuid.NewString()))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Verify re-checks that every staged file still exists. A false result
// means the list is stale and the caller should require a restart
// instead of renaming against it.
func (m *Manager) Verify() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	for i := range m.current.Files {
		exists, err := m.probe.Exists(m.current.Files[i].Path)
		if err != nil {
			logging.L().Warn("existence probe failed during verify",
				zap.String("path", m.current.Files[i].Path), zap.Error(err))
			return false
		}
		if !exists {
			return false
		}
	}
	return true
}

// UpdateAfterRename rewrites the staged file at oldPath to newPath.
// Called once per successful rename operation so the session stays
// consistent for any immediately-following commit.
func (m *Manager) UpdateAfterRename(oldPath, newPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}
	for i := range m.current.Files {
		if m.current.Files[i].Path == oldPath {
			m.current.Files[i].Relocate(newPath)
			return
		}
	}
	logging.L().Warn("rename completed for a path not in the session",
		zap.String("old", oldPath), zap.String("new", newPath))
}

// BeginCommit takes the commit guard. A second commit while one is
// running is rejected with ErrCommitInFlight, not queued: queuing could
// reorder filesystem state underneath the planner's validation snapshot.
// The returned func releases the guard.
func (m *Manager) BeginCommit() (func(), error) {
	if m.Current() == nil {
		return nil, ErrNoSession
	}
	if !m.commitMu.TryLock() {
		return nil, ErrCommitInFlight
	}
	return m.commitMu.Unlock, nil
}

// Clear runs the session's registered cleanups best-effort and then
// unconditionally drops the session reference. A stuck session is worse
// than a leaked staging artifact.
func (m *Manager) Clear() {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return
	}
	for _, fn := range s.cleanups {
		if err := fn(); err != nil {
			logging.L().Warn("session cleanup step failed",
				zap.String("session", s.ID), zap.Error(err))
		}
	}
}
