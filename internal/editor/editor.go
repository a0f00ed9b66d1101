// Package editor provides the fallback staging surface: a temp file
// opened in the user's editor, with commit intents detected through
// filesystem write events.
package editor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/renbuf/renbuf/internal/logging"
)

// Surface stages the name list in a temp file and runs an external
// editor on it. Every write of the file is a commit intent; unlike the
// Neovim surface the save itself cannot be vetoed, so a rejected commit
// simply leaves the session open for another edit and save.
type Surface struct {
	editorCmd string
	path      string

	mu       sync.Mutex
	onCommit []func(lines []string) error
	onClosed []func()

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// New creates a Surface running editorCmd, falling back to $EDITOR and
// then to vi.
func New(editorCmd string) *Surface {
	if editorCmd == "" {
		editorCmd = os.Getenv("EDITOR")
	}
	if editorCmd == "" {
		editorCmd = "vi"
	}
	return &Surface{editorCmd: editorCmd, done: make(chan struct{})}
}

// Render writes the staging file.
func (s *Surface) Render(title string, lines []string) error {
	dir, err := os.MkdirTemp("", "renbuf-")
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	s.path = filepath.Join(dir, title)

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(s.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write staging file: %w", err)
	}
	return nil
}

// OnCommit registers a commit-intent handler; the returned func
// unregisters it.
func (s *Surface) OnCommit(fn func(lines []string) error) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = append(s.onCommit, fn)
	i := len(s.onCommit) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if i < len(s.onCommit) {
			s.onCommit[i] = nil
		}
	}
}

// OnClosed registers a handler for the editor exiting; the returned
// func unregisters it.
func (s *Surface) OnClosed(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClosed = append(s.onClosed, fn)
	i := len(s.onClosed) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if i < len(s.onClosed) {
			s.onClosed[i] = nil
		}
	}
}

// Start launches the editor on the staging file and watches for writes.
// It returns immediately; Done is closed when the editor exits.
func (s *Surface) Start() error {
	if s.path == "" {
		return fmt.Errorf("surface not rendered")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors that replace the file on save would
	// otherwise drop the watch with it.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch staging dir: %w", err)
	}
	s.watcher = watcher
	go s.watch()

	parts := strings.Fields(s.editorCmd)
	args := append(parts[1:], s.path)
	cmd := exec.Command(parts[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to start editor %q: %w", s.editorCmd, err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			logging.L().Warn("editor exited with error", zap.Error(err))
		}
		// The final save may race the exit; commit once more from the
		// file as it was left.
		s.commitFromFile()
		s.notifyClosed()
	}()
	return nil
}

func (s *Surface) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.commitFromFile()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.L().Warn("staging file watcher error", zap.Error(err))
		}
	}
}

func (s *Surface) commitFromFile() {
	s.mu.Lock()
	handlers := make([]func([]string) error, 0, len(s.onCommit))
	for _, fn := range s.onCommit {
		if fn != nil {
			handlers = append(handlers, fn)
		}
	}
	s.mu.Unlock()
	if len(handlers) == 0 {
		return
	}

	lines, err := s.Lines()
	if err != nil {
		logging.L().Warn("could not read staging file",
			zap.String("path", s.path), zap.Error(err))
		return
	}

	for _, fn := range handlers {
		if fn == nil {
			continue
		}
		if err := fn(lines); err != nil {
			// No veto channel here; report and let the user re-edit.
			fmt.Fprintf(os.Stderr, "renbuf: %v\n", err)
			return
		}
	}
}

func (s *Surface) notifyClosed() {
	s.mu.Lock()
	handlers := make([]func(), len(s.onClosed))
	copy(handlers, s.onClosed)
	s.mu.Unlock()

	for _, fn := range handlers {
		if fn != nil {
			fn()
		}
	}
	s.once.Do(func() { close(s.done) })
}

// Lines returns the current lines of the staging file. A single
// trailing newline is not a line of its own.
func (s *Surface) Lines() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

// Done is closed when the editor exits.
func (s *Surface) Done() <-chan struct{} { return s.done }

// Teardown stops the watcher and deletes the staging artifact.
func (s *Surface) Teardown() error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	var err error
	if s.path != "" {
		err = os.RemoveAll(filepath.Dir(s.path))
	}
	s.once.Do(func() { close(s.done) })
	return err
}
