package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONFile rewrites a JSON array of frame runs at Path on every flush. The
// file is replaced by rename so readers never see a partial write.
type JSONFile struct {
	Path string
}

// Flush writes runs to a temp file beside Path and renames it into place.
func (j JSONFile) Flush(runs []FrameRun) error {
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runs: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(j.Path), filepath.Base(j.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.Path); err != nil {
		return fmt.Errorf("replace %s: %w", j.Path, err)
	}
	return nil
}

// ReadJSONFile loads a log written by JSONFile.
func ReadJSONFile(path string) ([]FrameRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var runs []FrameRun
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return runs, nil
}
