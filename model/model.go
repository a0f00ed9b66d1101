package model

import "path/filepath"

// StagedFile is one file under edit in a rename session.
// Path is always Dir joined with Name; the three fields are rewritten
// together, never independently.
type StagedFile struct {
	Path   string
	Name   string
	Dir    string
	Handle string
}

// NewStagedFile builds a StagedFile from an absolute path.
func NewStagedFile(path, handle string) StagedFile {
	return StagedFile{
		Path:   path,
		Name:   filepath.Base(path),
		Dir:    filepath.Dir(path),
		Handle: handle,
	}
}

// Relocate rewrites Path, Name and Dir together for a new absolute path.
func (f *StagedFile) Relocate(newPath string) {
	f.Path = newPath
	f.Name = filepath.Base(newPath)
	f.Dir = filepath.Dir(newPath)
}

// RenameRequest pairs a staged file with the name the user typed for it.
// Requests are built fresh on every commit attempt and never persisted.
type RenameRequest struct {
	File         *StagedFile
	ProposedName string
}

// RenameOperation is a validated, collision-free unit of work,
// one per planned filesystem mutation.
type RenameOperation struct {
	FromPath   string
	ToPath     string
	FromHandle string
	ToHandle   string
}

// RenamePair is the shape handed to the rename primitive.
type RenamePair struct {
	From string
	To   string
}

// FailedRename records one file that could not be renamed.
type FailedRename struct {
	Path string
	Err  error
}

// RenameResult is the outcome of one transaction attempt. It is always
// returned complete, even on total failure.
type RenameResult struct {
	Succeeded int
	Failed    []FailedRename
	Skipped   int
}

// Summary holds the results of a run for display.
type Summary struct {
	Renamed []string
	Failed  []string
	Skipped int
	Message string
}
