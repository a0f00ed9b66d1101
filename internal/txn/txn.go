// Package txn submits planned rename operations to the rename primitive
// as one transaction and anchors the result in the host's undo history.
package txn

import (
	"github.com/renbuf/renbuf/internal/plan"
	"github.com/renbuf/renbuf/model"
)

// SessionUpdater receives the new path of every successfully renamed
// staged file. The session manager implements it.
type SessionUpdater interface {
	UpdateAfterRename(oldPath, newPath string)
}

// Renamer executes a validated plan.
type Renamer struct {
	primitive Primitive
	session   SessionUpdater
	anchors   *AnchorChain
}

// NewRenamer creates a Renamer. anchors may be nil when no host is
// available to anchor against.
func NewRenamer(primitive Primitive, session SessionUpdater, anchors *AnchorChain) *Renamer {
	return &Renamer{primitive: primitive, session: session, anchors: anchors}
}

// Execute submits every operation of the plan to the primitive in a
// single call, so the host records one undo step for the batch. The
// primitive is all-or-nothing: on failure every operation is reported
// failed with the same error, because no individual rename landed.
// The result is always a complete record.
//
// After a successful apply the anchor chain runs best-effort; anchor
// failures are logged inside the chain and never surface here, since
// the files were already renamed correctly. AnchorPath reports which
// path ended up anchoring the batch, if any.
func (r *Renamer) Execute(p *plan.Plan) (result model.RenameResult, anchorPath string) {
	if p == nil {
		return model.RenameResult{}, ""
	}
	result.Skipped = p.Skipped
	if len(p.Operations) == 0 {
		return result, ""
	}

	pairs := make([]model.RenamePair, len(p.Operations))
	for i, op := range p.Operations {
		pairs[i] = model.RenamePair{From: op.FromPath, To: op.ToPath}
	}

	if err := r.primitive.ApplyRenameTransaction(pairs); err != nil {
		result.Failed = make([]model.FailedRename, len(p.Operations))
		for i, op := range p.Operations {
			result.Failed[i] = model.FailedRename{Path: op.FromPath, Err: err}
		}
		return result, ""
	}

	result.Succeeded = len(p.Operations)
	for _, op := range p.Operations {
		r.session.UpdateAfterRename(op.FromPath, op.ToPath)
	}

	if r.anchors != nil {
		anchorPath = r.anchors.Anchor(p.Operations)
	}
	return result, anchorPath
}
