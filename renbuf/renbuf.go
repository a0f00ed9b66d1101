// Package renbuf orchestrates batch renames staged through an editable
// buffer: session creation, validation, the rename transaction and undo
// anchoring.
package renbuf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/renbuf/renbuf/cli"
	"github.com/renbuf/renbuf/internal/config"
	"github.com/renbuf/renbuf/internal/editor"
	"github.com/renbuf/renbuf/internal/fsprobe"
	"github.com/renbuf/renbuf/internal/nvim"
	"github.com/renbuf/renbuf/internal/parser"
	"github.com/renbuf/renbuf/internal/plan"
	"github.com/renbuf/renbuf/internal/session"
	"github.com/renbuf/renbuf/internal/source"
	"github.com/renbuf/renbuf/internal/state"
	"github.com/renbuf/renbuf/internal/txn"
	"github.com/renbuf/renbuf/model"
)

// stagingTitle names the staging buffer or file shown to the user.
const stagingTitle = "renbuf-names"

// headerLines are instruction lines shown above the name list. Every
// line carries the comment prefix: the parser drops comment lines
// entirely, so the names below keep their positional mapping onto the
// staged files.
var headerLines = []string{
	"// renbuf: edit the names below, one line per file.",
	"// Leave a line blank to keep a file's name. Save to apply, close to cancel.",
	"//",
}

// StagingSurface is the editable text surface the session renders into.
// Commit handlers may veto by returning an error; handler registration
// returns an unregister func.
type StagingSurface interface {
	Render(title string, lines []string) error
	OnCommit(fn func(lines []string) error) func()
	OnClosed(fn func()) func()
	Start() error
	Done() <-chan struct{}
	Teardown() error
}

// App orchestrates the entire application logic.
type App struct {
	cfg            *cli.Config
	conf           *config.Config
	probe          *fsprobe.Probe
	sessions       *session.Manager
	planner        *plan.Planner
	stateManager   *state.Manager
	sourceProvider *source.Provider
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	confPath := cfg.ConfigPath
	if confPath == "" {
		confPath = config.DefaultPath()
	}
	conf, err := config.Load(confPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	stateManager, err := state.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}

	probe := fsprobe.New()
	return &App{
		cfg:            cfg,
		conf:           conf,
		probe:          probe,
		sessions:       session.NewManager(probe),
		planner:        plan.New(probe, cfg.Uniquify || conf.UniquifyOnCollision),
		stateManager:   stateManager,
		sourceProvider: source.New(),
	}, nil
}

// Config returns the loaded user configuration.
func (a *App) Config() *config.Config { return a.conf }

// NeedsTerminal reports whether this run will hand the terminal to an
// external editor, which rules out drawing a TUI over it.
func (a *App) NeedsTerminal() bool {
	if a.cfg.Undo || a.cfg.Redo || a.cfg.Paste {
		return false
	}
	if a.cfg.UseEditor {
		return true
	}
	return os.Getenv("NVIM") == "" && os.Getenv("NVIM_LISTEN_ADDRESS") == ""
}

// Execute runs the mode selected by the flags.
func (a *App) Execute() (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastBatch()
	case a.cfg.Redo:
		return a.redoLastBatch()
	case a.cfg.Paste:
		return a.runPaste()
	default:
		return a.runInteractive()
	}
}

// runInteractive stages the selection into an editable surface and
// commits whenever the user saves it.
func (a *App) runInteractive() (model.Summary, error) {
	sess, err := a.sessions.Create(a.cfg.Paths)
	if err != nil {
		return model.Summary{}, err
	}
	defer a.sessions.Clear()

	surface, host := a.newSurface()
	if closer, ok := surface.(interface{ Close() }); ok {
		defer closer.Close()
	}

	var chain *txn.AnchorChain
	if host != nil {
		chain = txn.NewAnchorChain(host)
		if h := a.stateManager.AnchorHints(); h.LastAnchorTargetPath != "" {
			chain.Prefer(h.LastAnchorTargetPath)
		}
	}
	renamer := txn.NewRenamer(txn.NewFSPrimitive(), a.sessions, chain)

	lines := make([]string, 0, len(headerLines)+len(sess.Files))
	lines = append(lines, headerLines...)
	for _, f := range sess.Files {
		lines = append(lines, f.Name)
	}
	if err := surface.Render(stagingTitle, lines); err != nil {
		return model.Summary{}, err
	}
	sess.BufferID = stagingTitle
	sess.OnClear(surface.Teardown)

	var result model.RenameResult
	var applied []model.RenameOperation

	var unregister func()
	unregister = surface.OnCommit(func(lines []string) error {
		release, err := a.sessions.BeginCommit()
		if err != nil {
			return err
		}
		defer release()

		res, ops, err := a.commit(sess, lines, renamer)
		if err != nil {
			return err
		}
		result, applied = res, ops

		// Done with the surface; further saves must not re-commit.
		unregister()
		// Only surfaces that can dismiss their artifact without
		// yanking it out from under the user do so now. The external
		// editor keeps its file until the editor exits; the session
		// cleanup removes it then.
		if d, ok := surface.(interface{ Dismiss() }); ok {
			go d.Dismiss()
		}
		return nil
	})
	surface.OnClosed(a.sessions.Clear)

	if err := surface.Start(); err != nil {
		return model.Summary{}, err
	}
	<-surface.Done()

	return a.buildSummary(result, applied), nil
}

// newSurface picks the Neovim surface when an instance is reachable and
// not overridden, falling back to the external editor.
func (a *App) newSurface() (StagingSurface, txn.AnchorHost) {
	if !a.cfg.UseEditor {
		if m, err := nvim.Dial(); err == nil {
			return m, m
		}
	}
	return editor.New(a.conf.Editor), nil
}

// commit validates the committed lines against the staged files and, if
// everything checks out, executes the rename transaction and records it
// as one undoable batch.
func (a *App) commit(sess *session.Session, lines []string, renamer *txn.Renamer) (model.RenameResult, []model.RenameOperation, error) {
	if !a.sessions.Verify() {
		return model.RenameResult{}, nil,
			fmt.Errorf("staged files changed on disk; close the list and start over")
	}

	names := parser.ProposedNames(lines)
	requests, err := plan.BuildRequests(sess.Files, names)
	if err != nil {
		return model.RenameResult{}, nil, err
	}

	p, err := a.planner.Build(requests)
	if err != nil {
		return model.RenameResult{}, nil, err
	}

	result, anchorPath := renamer.Execute(p)
	if len(result.Failed) > 0 {
		// The primitive is all-or-nothing, so one error covers the batch.
		return model.RenameResult{}, nil,
			fmt.Errorf("rename transaction failed: %w", result.Failed[0].Err)
	}

	if len(p.Operations) > 0 {
		a.stateManager.Write(p.Operations)
		targets := make([]string, len(p.Operations))
		for i, op := range p.Operations {
			targets[i] = op.ToPath
		}
		a.stateManager.RecordAnchorHints(state.Hints{
			LastAnchorTargetPath: anchorPath,
			LastBatchTargetPaths: targets,
		})
	}
	return result, p.Operations, nil
}

// runPaste applies a pasted name list without an editor round-trip.
func (a *App) runPaste() (model.Summary, error) {
	sess, err := a.sessions.Create(a.cfg.Paths)
	if err != nil {
		return model.Summary{}, err
	}
	defer a.sessions.Clear()

	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if content == "" {
		return model.Summary{Message: "Source is empty. Nothing to rename."}, nil
	}

	rawLines, err := parser.NameListFromMarkdown([]byte(content))
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to parse pasted list: %w", err)
	}

	// Anchoring is still worth attempting when an instance is around.
	var chain *txn.AnchorChain
	if m, err := nvim.Dial(); err == nil {
		defer m.Close()
		chain = txn.NewAnchorChain(m)
		if h := a.stateManager.AnchorHints(); h.LastAnchorTargetPath != "" {
			chain.Prefer(h.LastAnchorTargetPath)
		}
	}
	renamer := txn.NewRenamer(txn.NewFSPrimitive(), a.sessions, chain)

	release, err := a.sessions.BeginCommit()
	if err != nil {
		return model.Summary{}, err
	}
	defer release()

	result, applied, err := a.commit(sess, rawLines, renamer)
	if err != nil {
		return model.Summary{}, err
	}
	return a.buildSummary(result, applied), nil
}

// undoLastBatch renames the last committed batch back, as one
// transaction. The whole undo is refused if any file changed since the
// rename or any original path is occupied.
func (a *App) undoLastBatch() (model.Summary, error) {
	ops := a.stateManager.GetOperationsToUndo()
	if len(ops) == 0 {
		return model.Summary{Message: "No batch to undo."}, nil
	}

	pairs := make([]model.RenamePair, 0, len(ops))
	var failed []string
	for _, op := range ops {
		if reason := a.undoBlocked(op); reason != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", op.To, reason))
			continue
		}
		pairs = append(pairs, model.RenamePair{From: op.To, To: op.From})
	}
	if len(failed) > 0 {
		return model.Summary{
			Failed:  failed,
			Message: "Undo aborted; nothing was renamed.",
		}, nil
	}

	if err := txn.NewFSPrimitive().ApplyRenameTransaction(pairs); err != nil {
		return model.Summary{}, fmt.Errorf("undo failed: %w", err)
	}
	a.stateManager.ConfirmUndo()

	summary := model.Summary{Message: "Undid last batch."}
	for _, pair := range pairs {
		summary.Renamed = append(summary.Renamed, pair.To)
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func (a *App) undoBlocked(op state.Op) string {
	hash, err := fsprobe.SHA256(op.To)
	if err != nil || hash != op.ContentHash {
		return "changed since the rename"
	}
	exists, err := a.probe.Exists(op.From)
	if err != nil {
		return fmt.Sprintf("could not verify original path: %v", err)
	}
	if exists {
		return "original path is occupied"
	}
	return ""
}

// redoLastBatch replays the last undone batch.
func (a *App) redoLastBatch() (model.Summary, error) {
	ops := a.stateManager.GetOperationsToRedo()
	if len(ops) == 0 {
		return model.Summary{Message: "No batch to redo."}, nil
	}

	pairs := make([]model.RenamePair, 0, len(ops))
	var failed []string
	for _, op := range ops {
		if reason := a.redoBlocked(op); reason != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", op.From, reason))
			continue
		}
		pairs = append(pairs, model.RenamePair{From: op.From, To: op.To})
	}
	if len(failed) > 0 {
		return model.Summary{
			Failed:  failed,
			Message: "Redo aborted; nothing was renamed.",
		}, nil
	}

	if err := txn.NewFSPrimitive().ApplyRenameTransaction(pairs); err != nil {
		return model.Summary{}, fmt.Errorf("redo failed: %w", err)
	}
	a.stateManager.ConfirmRedo()

	summary := model.Summary{Message: "Redid last batch."}
	for _, pair := range pairs {
		summary.Renamed = append(summary.Renamed, pair.To)
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func (a *App) redoBlocked(op state.Op) string {
	hash, err := fsprobe.SHA256(op.From)
	if err != nil || hash != op.ContentHash {
		return "changed since the undo"
	}
	exists, err := a.probe.Exists(op.To)
	if err != nil {
		return fmt.Sprintf("could not verify target path: %v", err)
	}
	if exists {
		return "target path is occupied"
	}
	return ""
}

func (a *App) buildSummary(result model.RenameResult, applied []model.RenameOperation) model.Summary {
	summary := model.Summary{Skipped: result.Skipped}
	for _, op := range applied {
		summary.Renamed = append(summary.Renamed, op.ToPath)
	}
	for _, f := range result.Failed {
		summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", f.Path, f.Err))
	}
	if len(summary.Renamed) == 0 && len(summary.Failed) == 0 {
		summary.Message = "No names were changed."
	}
	a.relativizeSummaryPaths(&summary)
	return summary
}

// relativizeSummaryPaths converts absolute paths in a summary to be
// relative to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	makeRelative := func(absPaths []string) []string {
		relPaths := make([]string, len(absPaths))
		for i, p := range absPaths {
			rel, err := filepath.Rel(wd, p)
			if err != nil {
				relPaths[i] = p
			} else {
				relPaths[i] = rel
			}
		}
		return relPaths
	}
	summary.Renamed = makeRelative(summary.Renamed)
}
