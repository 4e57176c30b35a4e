package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore snapshots the ledger to a JSON file, the single-process
// stand-in for a real database. SaveAll writes to a temp file and renames so
// a crash mid-write never corrupts the previous snapshot.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) LoadAll(ctx context.Context) ([]Appointment, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var appts []Appointment
	if err := json.Unmarshal(data, &appts); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return appts, nil
}

func (s *FileStore) SaveAll(ctx context.Context, appts []Appointment) error {
	data, err := json.MarshalIndent(appts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
