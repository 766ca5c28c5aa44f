package syncjob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hotel_catalog/internal/domain"
)

// Checkpoint persists SyncProgress as a small JSON file. Writes go to a temp
// file in the same directory and are renamed into place, so readers only
// ever see a complete snapshot.
type Checkpoint struct {
	path string
}

func NewCheckpoint(path string) *Checkpoint { return &Checkpoint{path: path} }

func (c *Checkpoint) Path() string { return c.path }

// Load returns ok=false when no checkpoint exists.
func (c *Checkpoint) Load() (domain.SyncProgress, bool, error) {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.SyncProgress{}, false, nil
	}
	if err != nil {
		return domain.SyncProgress{}, false, err
	}
	var p domain.SyncProgress
	if err := json.Unmarshal(b, &p); err != nil {
		return domain.SyncProgress{}, false, fmt.Errorf("checkpoint %s is corrupt: %w", c.path, err)
	}
	if p.LastProcessedLine < 0 {
		return domain.SyncProgress{}, false, fmt.Errorf("checkpoint %s: negative line %d", c.path, p.LastProcessedLine)
	}
	return p, true, nil
}

func (c *Checkpoint) Save(p domain.SyncProgress) error {
	return writeJSONAtomic(c.path, p)
}

func (c *Checkpoint) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}

// LoadFailures reads a failure file; a missing file yields nil.
func LoadFailures(path string) ([]domain.FailedRecord, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var fs []domain.FailedRecord
	if err := json.Unmarshal(b, &fs); err != nil {
		return nil, fmt.Errorf("failure file %s is corrupt: %w", path, err)
	}
	return fs, nil
}

// WriteFailures writes the failure list once; an empty list writes nothing.
func WriteFailures(path string, fs []domain.FailedRecord) error {
	if len(fs) == 0 || path == "" {
		return nil
	}
	return writeJSONAtomic(path, fs)
}
