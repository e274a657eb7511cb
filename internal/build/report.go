package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeReport persists the report as indented JSON.
func writeReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadReport loads the manifest of a promoted output directory.
func ReadReport(outDir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(outDir, ManifestFilename))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFilename, err)
	}
	r.OutputDir = outDir
	r.Duration = r.EndTime.Sub(r.StartTime)
	return &r, nil
}
