package build

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// beginStaging creates a sibling staging directory (<out>_stage) that
// receives every artifact of the build. Leftovers of an interrupted build
// are discarded first.
func beginStaging(outDir string) (string, error) {
	stage := outDir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return "", err
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", err
	}
	slog.Debug("Initialized staging directory", slog.String("staging", stage), slog.String("final", outDir))
	return stage, nil
}

// finalizeStaging promotes the staging directory to the output location:
//  1. Remove a stale <out>.prev backup.
//  2. Move the existing output to <out>.prev.
//  3. Rename staging to output.
//  4. Remove the backup.
func finalizeStaging(stageDir, outDir string) error {
	if stageDir == "" {
		return fmt.Errorf("no staging directory initialized")
	}
	if _, err := os.Stat(stageDir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}

	prev := outDir + ".prev"
	if _, err := os.Stat(prev); err == nil {
		for i := 0; i < 3; i++ {
			if err := os.RemoveAll(prev); err == nil {
				break
			}
			if i < 2 {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
	if _, err := os.Stat(outDir); err == nil {
		if err := os.Rename(outDir, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(stageDir, outDir); err != nil {
		// Put the previous output back so the served tree stays intact.
		if _, statErr := os.Stat(prev); statErr == nil {
			_ = os.Rename(prev, outDir)
		}
		return fmt.Errorf("promote staging: %w", err)
	}
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	slog.Debug("Promoted staging directory", slog.String("output", outDir))
	return nil
}

// abortStaging removes the staging directory after a failed build.
func abortStaging(stageDir string) {
	if stageDir == "" {
		return
	}
	if err := os.RemoveAll(stageDir); err != nil {
		slog.Warn("Failed to remove staging directory after abort", slog.String("staging", stageDir), logfields.Error(err))
	} else {
		slog.Debug("Removed staging directory after abort", slog.String("staging", stageDir))
	}
}
