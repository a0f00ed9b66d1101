package renbuf

import (
	"fmt"

	"github.com/renbuf/renbuf/cli"
	"github.com/renbuf/renbuf/internal/txn"
	"github.com/renbuf/renbuf/model"
)

// Options for using renbuf as a library.
type Options struct {
	// Uniquify breaks destination collisions by appending _1, _2, ...
	// instead of rejecting the plan.
	Uniquify bool
}

// Rename stages the given paths and applies the proposed names in one
// transaction, without any editor round-trip. Names map positionally:
// name i applies to path i after staging order (directories expand to
// their sorted regular files). An empty name leaves that file alone.
func Rename(paths []string, names []string, opts Options) (model.Summary, error) {
	app, err := New(&cli.Config{Paths: paths, Uniquify: opts.Uniquify})
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize renbuf: %w", err)
	}

	sess, err := app.sessions.Create(paths)
	if err != nil {
		return model.Summary{}, err
	}
	defer app.sessions.Clear()

	release, err := app.sessions.BeginCommit()
	if err != nil {
		return model.Summary{}, err
	}
	defer release()

	renamer := txn.NewRenamer(txn.NewFSPrimitive(), app.sessions, nil)
	result, applied, err := app.commit(sess, names, renamer)
	if err != nil {
		return model.Summary{}, err
	}
	return app.buildSummary(result, applied), nil
}
