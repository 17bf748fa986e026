package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"scene-optimizer/core"
)

// WriteManifest writes s as indented JSON to path.
func WriteManifest(path string, s *Summary) error {
	if s == nil {
		return fmt.Errorf("write manifest: %w", core.ErrNullReference)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write manifest %q: %v: %w", path, err, core.ErrIOFailure)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write manifest %q: %v: %w", path, err, core.ErrIOFailure)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %q: %v: %w", path, err, core.ErrIOFailure)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("read manifest %q: %w", path, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %v: %w", path, err, core.ErrIOFailure)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("read manifest %q: %v: %w", path, err, core.ErrIOFailure)
	}
	return &s, nil
}
