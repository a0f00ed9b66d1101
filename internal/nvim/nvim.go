// Package nvim binds the staging surface and the undo anchor host to a
// running Neovim instance over RPC.
package nvim

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/neovim/go-client/nvim"
	"go.uber.org/zap"

	"github.com/renbuf/renbuf/internal/logging"
)

const (
	commitMethod = "renbuf_commit"
	closedEvent  = "renbuf_closed"

	// anchorCloseDelay is how long a manufactured anchor stays visible.
	anchorCloseDelay = 300 * time.Millisecond
)

// ErrNoInstance is returned when no Neovim instance can be reached.
var ErrNoInstance = errors.New("no reachable nvim instance ($NVIM is not set)")

// Manager handles the connection and interaction with a Neovim instance.
// It implements both the staging surface and the anchor host.
type Manager struct {
	v   *nvim.Nvim
	buf nvim.Buffer

	mu       sync.Mutex
	onCommit []func(lines []string) error
	onClosed []func()

	done     chan struct{}
	doneOnce sync.Once
}

// Dial connects to the Neovim instance advertised in the environment.
func Dial() (*Manager, error) {
	addr := os.Getenv("NVIM")
	if addr == "" {
		addr = os.Getenv("NVIM_LISTEN_ADDRESS")
	}
	if addr == "" {
		return nil, ErrNoInstance
	}

	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nvim at %s: %w", addr, err)
	}

	m := &Manager{v: v, done: make(chan struct{})}
	if err := m.registerHandlers(); err != nil {
		v.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) registerHandlers() error {
	if err := m.v.RegisterHandler(commitMethod, m.handleCommit); err != nil {
		return err
	}
	if err := m.v.RegisterHandler(closedEvent, func() {
		m.handleClosed()
	}); err != nil {
		return err
	}
	return m.v.Subscribe(closedEvent)
}

// Render creates the staging buffer and fills it with the given lines.
// The buffer is a scratch acwrite buffer: :w fires BufWriteCmd, which
// calls back into this process synchronously so the save can be vetoed.
func (m *Manager) Render(title string, lines []string) error {
	b := m.v.NewBatch()
	b.Command("botright new")
	b.Command("setlocal buftype=acwrite bufhidden=wipe noswapfile nobuflisted")
	b.Command(fmt.Sprintf("silent file %s", title))
	if err := b.Execute(); err != nil {
		return fmt.Errorf("failed to create staging buffer: %w", err)
	}

	buf, err := m.v.CurrentBuffer()
	if err != nil {
		return err
	}
	m.buf = buf

	byteLines := make([][]byte, len(lines))
	for i, s := range lines {
		byteLines[i] = []byte(s)
	}

	chanID := m.v.ChannelID()
	b = m.v.NewBatch()
	b.SetBufferLines(buf, 0, -1, true, byteLines)
	b.SetBufferOption(buf, "modified", false)
	b.Command(fmt.Sprintf(
		"autocmd BufWriteCmd <buffer=%d> call rpcrequest(%d, '%s')",
		buf, chanID, commitMethod))
	b.Command(fmt.Sprintf(
		"autocmd BufWipeout <buffer=%d> silent! call rpcnotify(%d, '%s')",
		buf, chanID, closedEvent))
	return b.Execute()
}

// OnCommit registers a commit-intent handler. Returning an error from
// the handler vetoes the save: the buffer stays modified and the error
// is shown in Neovim. The returned func unregisters the handler.
func (m *Manager) OnCommit(fn func(lines []string) error) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCommit = append(m.onCommit, fn)
	return m.unregisterCommit(len(m.onCommit) - 1)
}

func (m *Manager) unregisterCommit(i int) func() {
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if i < len(m.onCommit) {
			m.onCommit[i] = nil
		}
	}
}

// OnClosed registers a handler for the surface being wiped out. The
// returned func unregisters the handler.
func (m *Manager) OnClosed(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClosed = append(m.onClosed, fn)
	i := len(m.onClosed) - 1
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if i < len(m.onClosed) {
			m.onClosed[i] = nil
		}
	}
}

// handleCommit services the BufWriteCmd rpcrequest. Neovim blocks until
// it returns; an error aborts the write, which is the veto.
func (m *Manager) handleCommit() error {
	lines, err := m.Lines()
	if err != nil {
		return err
	}

	m.mu.Lock()
	handlers := make([]func([]string) error, len(m.onCommit))
	copy(handlers, m.onCommit)
	m.mu.Unlock()

	for _, fn := range handlers {
		if fn == nil {
			continue
		}
		if err := fn(lines); err != nil {
			return err
		}
	}

	// Accepted: mark the buffer saved.
	return m.v.SetBufferOption(m.buf, "modified", false)
}

func (m *Manager) handleClosed() {
	m.mu.Lock()
	handlers := make([]func(), len(m.onClosed))
	copy(handlers, m.onClosed)
	m.mu.Unlock()

	for _, fn := range handlers {
		if fn != nil {
			fn()
		}
	}
	m.doneOnce.Do(func() { close(m.done) })
}

// Lines returns the current lines of the staging buffer.
func (m *Manager) Lines() ([]string, error) {
	byteLines, err := m.v.BufferLines(m.buf, 0, -1, true)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(byteLines))
	for i, b := range byteLines {
		lines[i] = string(b)
	}
	return lines, nil
}

// Start is a no-op for the Neovim surface; the buffer is already live.
func (m *Manager) Start() error { return nil }

// Done is closed once the staging buffer has been wiped out.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Teardown closes the staging buffer. The wipeout autocmd fires the
// closed event, which unblocks Done.
func (m *Manager) Teardown() error {
	if m.buf == 0 {
		m.doneOnce.Do(func() { close(m.done) })
		return nil
	}
	return m.v.Command(fmt.Sprintf("silent! bdelete! %d", m.buf))
}

// Dismiss closes the staging buffer once its commit has been accepted.
// A wiped buffer is the normal end of a buffer's life in the host, so
// this is safe mid-session, unlike deleting a file out from under an
// external editor.
func (m *Manager) Dismiss() {
	if err := m.Teardown(); err != nil {
		logging.L().Warn("could not dismiss staging buffer", zap.Error(err))
	}
}

// Close disconnects from Neovim.
func (m *Manager) Close() {
	if m.v != nil {
		m.v.Close()
	}
}

// --- Anchor host ---

// IsAnyVisible reports whether any of the paths is shown in a window.
func (m *Manager) IsAnyVisible(paths []string) bool {
	for _, path := range paths {
		var bufnr int
		if err := m.v.Call("bufnr", &bufnr, path); err != nil || bufnr < 0 {
			continue
		}
		var winid int
		if err := m.v.Call("bufwinid", &winid, bufnr); err != nil {
			continue
		}
		if winid != -1 {
			return true
		}
	}
	return false
}

// OpenBriefly shows path in a small split without taking focus and
// schedules its close. The timer never blocks the caller.
func (m *Manager) OpenBriefly(path string) error {
	b := m.v.NewBatch()
	b.Command(fmt.Sprintf("keepalt botright 1split %s", escapePath(path)))
	if err := b.Execute(); err != nil {
		return err
	}

	buf, err := m.v.CurrentBuffer()
	if err != nil {
		return err
	}
	if err := m.v.Command("wincmd p"); err != nil {
		// Focus restore failed; the anchor still exists.
		logging.L().Warn("could not restore window focus", zap.Error(err))
	}

	m.scheduleClose(buf)
	return nil
}

// ShowScratch briefly shows a throwaway document listing the batch.
func (m *Manager) ShowScratch(title string, lines []string) error {
	b := m.v.NewBatch()
	b.Command("keepalt botright 1new")
	b.Command("setlocal buftype=nofile bufhidden=wipe noswapfile nobuflisted")
	b.Command(fmt.Sprintf("silent file %s", escapePath(title)))
	if err := b.Execute(); err != nil {
		return err
	}

	buf, err := m.v.CurrentBuffer()
	if err != nil {
		return err
	}

	byteLines := make([][]byte, len(lines))
	for i, s := range lines {
		byteLines[i] = []byte(s)
	}
	b = m.v.NewBatch()
	b.SetBufferLines(buf, 0, -1, true, byteLines)
	b.Command("wincmd p")
	if err := b.Execute(); err != nil {
		return err
	}

	m.scheduleClose(buf)
	return nil
}

func (m *Manager) scheduleClose(buf nvim.Buffer) {
	time.AfterFunc(anchorCloseDelay, func() {
		if err := m.v.Command(fmt.Sprintf("silent! bdelete %d", buf)); err != nil {
			logging.L().Warn("could not close anchor buffer",
				zap.Int("buffer", int(buf)), zap.Error(err))
		}
	})
}

func escapePath(path string) string {
	return strings.NewReplacer(" ", `\ `, "%", `\%`, "#", `\#`).Replace(path)
}
