package txn

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/renbuf/renbuf/internal/logging"
	"github.com/renbuf/renbuf/model"
)

// Primitive applies a group of renames as one transaction. The whole
// group either lands or is rolled back; the caller may treat one call
// as one undoable step.
type Primitive interface {
	ApplyRenameTransaction(pairs []model.RenamePair) error
}

// FSPrimitive renames in two phases: every source is first moved to a
// unique temporary name, then every temporary is moved to its final
// name. Any failure in either phase rolls the whole batch back. The
// detour through temporaries makes swap chains (a→b while b→c) safe.
type FSPrimitive struct{}

// NewFSPrimitive returns the filesystem-backed primitive.
func NewFSPrimitive() *FSPrimitive {
	return &FSPrimitive{}
}

type stagedStep struct {
	tmp   string
	from  string
	to    string
	final bool
}

// ApplyRenameTransaction implements Primitive.
func (f *FSPrimitive) ApplyRenameTransaction(pairs []model.RenamePair) error {
	if len(pairs) == 0 {
		return nil
	}

	suffix := fmt.Sprintf(".renbuf-tmp-%d", time.Now().UnixNano())

	steps := make([]stagedStep, 0, len(pairs))

	// Phase 1: move every source out of the way.
	for _, pair := range pairs {
		tmp := pair.From + suffix
		for i := 0; pathTaken(tmp); i++ {
			tmp = fmt.Sprintf("%s%s.%d", pair.From, suffix, i)
		}
		if err := os.Rename(pair.From, tmp); err != nil {
			f.rollback(steps)
			return fmt.Errorf("staging %s: %w", pair.From, err)
		}
		steps = append(steps, stagedStep{tmp: tmp, from: pair.From, to: pair.To})
	}

	// Phase 2: move temporaries to their final names.
	for i := range steps {
		if err := os.Rename(steps[i].tmp, steps[i].to); err != nil {
			f.rollback(steps)
			return fmt.Errorf("renaming %s to %s: %w", steps[i].from, steps[i].to, err)
		}
		steps[i].final = true
	}
	return nil
}

// rollback restores every step to its original path, including steps
// that already reached their final name.
func (f *FSPrimitive) rollback(steps []stagedStep) {
	for i := len(steps) - 1; i >= 0; i-- {
		src := steps[i].tmp
		if steps[i].final {
			src = steps[i].to
		}
		if err := os.Rename(src, steps[i].from); err != nil {
			logging.L().Warn("rollback step failed",
				zap.String("from", src),
				zap.String("to", steps[i].from),
				zap.Error(err))
		}
	}
}

func pathTaken(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
