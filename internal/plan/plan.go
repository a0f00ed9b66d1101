// Package plan turns (file, proposed name) pairs into validated,
// collision-checked rename operations.
package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/renbuf/renbuf/internal/fsprobe"
	"github.com/renbuf/renbuf/internal/validate"
	"github.com/renbuf/renbuf/model"
)

// ErrLineCountMismatch is the hard precondition failure raised before
// planning begins when the committed line count does not match the
// staged file count. Correspondence is purely positional, so a mismatch
// means the mapping is unknowable.
var ErrLineCountMismatch = errors.New("edited line count does not match staged file count")

// Problem describes one invalid request found during planning.
type Problem struct {
	Line   int // 1-based position in the staged list
	Name   string
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("line %d (%q): %s", p.Line, p.Name, p.Reason)
}

// ValidationError aggregates every problem found in one planning pass,
// so the user sees all of them at once instead of fixing one per retry.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("%d invalid rename(s): %s",
		len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes each problem as its own error for errors.Is chains.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		errs[i] = errors.New(p.String())
	}
	return errs
}

// Plan is a validated set of operations ready for execution.
type Plan struct {
	Operations []model.RenameOperation
	// Skipped counts requests dropped as no-ops: blank lines and
	// unchanged names.
	Skipped int
}

// Planner validates rename requests against the filesystem.
type Planner struct {
	probe *fsprobe.Probe
	// uniquify breaks destination collisions by appending _1, _2, ...
	// instead of rejecting them. Off by default.
	uniquify bool
}

// New creates a Planner.
func New(probe *fsprobe.Probe, uniquify bool) *Planner {
	return &Planner{probe: probe, uniquify: uniquify}
}

// BuildRequests pairs staged files with proposed names positionally.
// It fails with ErrLineCountMismatch before any filesystem access when
// the counts differ.
func BuildRequests(files []model.StagedFile, names []string) ([]model.RenameRequest, error) {
	if len(names) != len(files) {
		return nil, fmt.Errorf("%w: %d line(s) for %d file(s)",
			ErrLineCountMismatch, len(names), len(files))
	}
	requests := make([]model.RenameRequest, len(files))
	for i := range files {
		requests[i] = model.RenameRequest{File: &files[i], ProposedName: names[i]}
	}
	return requests, nil
}

// Build validates every request and returns the plan, or a
// ValidationError aggregating all problems found. No partial plan is
// ever returned: if anything is invalid the user fixes everything and
// retries, rather than having only the valid subset applied silently.
func (p *Planner) Build(requests []model.RenameRequest) (*Plan, error) {
	plan := &Plan{}
	var problems []Problem

	// Targets claimed within this batch, for duplicate detection.
	claimed := make(map[string]int)

	for i, req := range requests {
		line := i + 1
		name := req.ProposedName

		// Blank means the user left the line alone: no change.
		if name == "" {
			plan.Skipped++
			continue
		}

		if !validate.IsSyntacticallyValid(name) {
			problems = append(problems, Problem{
				Line: line, Name: name,
				Reason: "invalid name: must be non-empty and contain no path separators",
			})
			continue
		}

		fromPath := req.File.Path
		toPath := filepath.Join(req.File.Dir, name)
		if toPath == fromPath {
			plan.Skipped++
			continue
		}

		srcExists, err := p.probe.Exists(fromPath)
		if err != nil {
			problems = append(problems, Problem{
				Line: line, Name: name,
				Reason: fmt.Sprintf("could not verify source %s: %v", fromPath, err),
			})
			continue
		}
		if !srcExists {
			problems = append(problems, Problem{
				Line: line, Name: name,
				Reason: fmt.Sprintf("source no longer exists: %s", fromPath),
			})
			continue
		}

		if prev, dup := claimed[foldKey(toPath)]; dup {
			problems = append(problems, Problem{
				Line: line, Name: name,
				Reason: fmt.Sprintf("duplicate target, also produced by line %d", prev),
			})
			continue
		}

		destExists, err := p.probe.Exists(toPath)
		if err != nil {
			problems = append(problems, Problem{
				Line: line, Name: name,
				Reason: fmt.Sprintf("could not verify destination %s: %v", toPath, err),
			})
			continue
		}
		// A destination that "exists" only because it is the source
		// under a case-insensitive filesystem is a legitimate
		// case-only rename, not a collision.
		if destExists && !fsprobe.SamePathFold(toPath, fromPath) {
			if p.uniquify {
				toPath = p.probe.Uniquify(toPath)
			} else {
				problems = append(problems, Problem{
					Line: line, Name: name,
					Reason: fmt.Sprintf("destination already exists: %s", toPath),
				})
				continue
			}
		}

		claimed[foldKey(toPath)] = line
		plan.Operations = append(plan.Operations, model.RenameOperation{
			FromPath:   fromPath,
			ToPath:     toPath,
			FromHandle: req.File.Handle,
			ToHandle:   uuid.NewString(),
		})
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return plan, nil
}

func foldKey(path string) string {
	return strings.ToLower(path)
}
