// Package results persists assessment records as JSON files, one file per
// configuration, named by the configuration's deterministic result name.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"infleval/internal/errors"
	"infleval/ports"
)

// FileStore writes records under a base directory as <filename>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.ConfigInvalid("results directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating results directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(filename string) string {
	return filepath.Join(s.dir, filename+".json")
}

// Save writes the record atomically via a temporary file.
func (s *FileStore) Save(_ context.Context, rec *ports.AssessmentRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding assessment record")
	}
	tmp := s.path(rec.Filename) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, s.path(rec.Filename)); err != nil {
		return errors.Wrapf(err, "renaming %s", tmp)
	}
	return nil
}

// Exists reports whether a record for this result name is already on disk.
func (s *FileStore) Exists(_ context.Context, filename string) (bool, error) {
	_, err := os.Stat(s.path(filename))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %s", s.path(filename))
}

// Load reads a record back by result name.
func (s *FileStore) Load(_ context.Context, filename string) (*ports.AssessmentRecord, error) {
	data, err := os.ReadFile(s.path(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("no result named %s", filename))
		}
		return nil, errors.Wrapf(err, "reading %s", s.path(filename))
	}
	var rec ports.AssessmentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", s.path(filename))
	}
	return &rec, nil
}
