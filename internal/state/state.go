// Package state persists batch rename history across runs: an undo/redo
// pointer over committed batches, plus advisory anchor hints.
package state

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/renbuf/renbuf/internal/fsprobe"
	"github.com/renbuf/renbuf/internal/logging"
	"github.com/renbuf/renbuf/model"
)

const (
	stateDirName  = ".renbuf"
	stateFileName = "state.renbuf"
	hintsFileName = "hints.renbuf"
)

// Op is one recorded rename. ContentHash is taken from the destination
// right after the batch lands, so undo can verify the file is untouched.
type Op struct {
	From        string
	To          string
	ContentHash string
}

// Entry is one committed batch: one undo step.
type Entry struct {
	Timestamp  int64
	Operations []Op
}

// State is the on-disk history.
type State struct {
	History      []Entry
	CurrentIndex int
}

// Hints are the advisory cross-restart anchor hints. They are never
// required for correctness.
type Hints struct {
	LastAnchorTargetPath string
	LastBatchTargetPaths []string
}

// Manager handles the lifecycle of the state files.
type Manager struct {
	statePath string
	hintsPath string
	state     *State
	StateDir  string
}

// findGitRoot finds the root of the git repository.
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// New creates and loads a state manager rooted at the enclosing git
// repository, falling back to the working directory.
func New() (*Manager, error) {
	rootDir, err := findGitRoot()
	if err != nil {
		rootDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
	}
	return NewAt(rootDir)
}

// NewAt creates and loads a state manager rooted at dir.
func NewAt(dir string) (*Manager, error) {
	stateDir := filepath.Join(dir, stateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		hintsPath: filepath.Join(stateDir, hintsFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		logging.L().Warn("could not load state, starting fresh",
			zap.String("path", m.statePath), zap.Error(err))
		m.state = &State{CurrentIndex: -1}
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = &State{CurrentIndex: -1}
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || blocks[0] == "" {
		m.state = &State{CurrentIndex: -1}
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	m.state = &State{CurrentIndex: index}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from %q: %w", lines[0], err)
		}

		entry := Entry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%3 != 0 {
			return fmt.Errorf("invalid state file: incomplete rename record")
		}
		for i := 0; i < len(opLines); i += 3 {
			entry.Operations = append(entry.Operations, Op{
				From:        opLines[i],
				To:          opLines[i+1],
				ContentHash: opLines[i+2],
			})
		}
		m.state.History = append(m.state.History, entry)
	}
	return nil
}

func (m *Manager) save() {
	blocks := []string{fmt.Sprintf("%d", m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("%d\n", entry.Timestamp))
		opLines := make([]string, 0, 3*len(entry.Operations))
		for _, op := range entry.Operations {
			opLines = append(opLines, op.From, op.To, op.ContentHash)
		}
		b.WriteString(strings.Join(opLines, "\n"))
		blocks = append(blocks, b.String())
	}

	if err := os.WriteFile(m.statePath, []byte(strings.Join(blocks, "\n\n")), 0o644); err != nil {
		logging.L().Warn("could not save state",
			zap.String("path", m.statePath), zap.Error(err))
	}
}

// Write records a committed batch as one history entry, truncating any
// redo tail first. Hashes come from the destinations, which exist by the
// time a batch is recorded.
func (m *Manager) Write(operations []model.RenameOperation) {
	if len(operations) == 0 {
		return
	}
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	entry := Entry{Timestamp: time.Now().UTC().Unix()}
	for _, op := range operations {
		hash, err := fsprobe.SHA256(op.ToPath)
		if err != nil {
			// An empty hash makes the later safety check fail closed.
			hash = ""
		}
		entry.Operations = append(entry.Operations, Op{
			From:        op.FromPath,
			To:          op.ToPath,
			ContentHash: hash,
		})
	}
	m.state.History = append(m.state.History, entry)
	m.state.CurrentIndex++
	m.save()
}

// GetOperationsToUndo returns the batch the pointer sits on without
// moving it. Call ConfirmUndo once the replay has actually landed, so
// an aborted undo leaves the history untouched.
func (m *Manager) GetOperationsToUndo() []Op {
	if m.state.CurrentIndex < 0 || m.state.CurrentIndex >= len(m.state.History) {
		return nil
	}
	return m.state.History[m.state.CurrentIndex].Operations
}

// ConfirmUndo moves the pointer back over the batch just undone.
func (m *Manager) ConfirmUndo() {
	if m.state.CurrentIndex < 0 {
		return
	}
	m.state.CurrentIndex--
	m.save()
}

// GetOperationsToRedo returns the next batch without moving the
// pointer. Call ConfirmRedo once the replay has actually landed.
func (m *Manager) GetOperationsToRedo() []Op {
	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil
	}
	return m.state.History[nextIndex].Operations
}

// ConfirmRedo moves the pointer forward over the batch just redone.
func (m *Manager) ConfirmRedo() {
	if m.state.CurrentIndex+1 >= len(m.state.History) {
		return
	}
	m.state.CurrentIndex++
	m.save()
}

// RecordAnchorHints persists the advisory anchor hints for a batch.
func (m *Manager) RecordAnchorHints(h Hints) {
	lines := append([]string{h.LastAnchorTargetPath}, h.LastBatchTargetPaths...)
	content := strings.Join(lines, "\n")
	if err := os.WriteFile(m.hintsPath, []byte(content), 0o644); err != nil {
		logging.L().Warn("could not save anchor hints",
			zap.String("path", m.hintsPath), zap.Error(err))
	}
}

// AnchorHints loads the last persisted hints, if any.
func (m *Manager) AnchorHints() Hints {
	data, err := os.ReadFile(m.hintsPath)
	if err != nil {
		return Hints{}
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) == 0 {
		return Hints{}
	}
	h := Hints{LastAnchorTargetPath: lines[0]}
	if len(lines) > 1 {
		h.LastBatchTargetPaths = lines[1:]
	}
	return h
}
