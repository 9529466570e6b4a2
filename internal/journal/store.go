package journal

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vesaa/bop/internal/errs"
)

// DefaultPath is where the journal lives on a real system.
const DefaultPath = "/var/lib/bop/state.json"

// Store reads and writes the journal file at Path.
type Store struct {
	Path string
}

// Exists reports whether a journal is on disk.
func (s Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Load returns the journal, or nil when none exists. Unknown fields are
// ignored and missing vectors default to empty.
func (s Store) Load() (*Journal, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Path(errs.State, s.Path, err)
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, errs.Wrap(errs.State, err, "parsing %s", s.Path)
	}
	j.normalize()
	return &j, nil
}

// Save writes the journal atomically: a temp file in the same directory is
// renamed over the old one.
func (s Store) Save(j *Journal) error {
	j.normalize()
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return errs.Wrap(errs.State, err, "encoding journal")
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Path(errs.State, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errs.Path(errs.State, dir, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Path(errs.State, tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.Path(errs.State, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Path(errs.State, tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errs.Path(errs.State, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return errs.Path(errs.State, s.Path, err)
	}
	return nil
}

// Remove deletes the journal. A missing file is not an error.
func (s Store) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Path(errs.State, s.Path, err)
	}
	return nil
}
