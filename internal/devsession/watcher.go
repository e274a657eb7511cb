package devsession

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Watcher reports source changes below a set of roots. Directories created
// later are added as they appear.
type Watcher struct {
	w       *fsnotify.Watcher
	ignored []string
	logger  *slog.Logger
}

// NewWatcher watches roots recursively. Any path at or below one of ignored
// (output, staging and cache directories) is skipped.
func NewWatcher(roots, ignored []string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{w: fw, logger: logger}
	for _, p := range ignored {
		if p != "" {
			w.ignored = append(w.ignored, filepath.Clean(p))
		}
	}
	for _, root := range roots {
		st, err := os.Stat(root)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
		if !st.IsDir() {
			if err := fw.Add(filepath.Dir(root)); err != nil {
				_ = fw.Close()
				return nil, fmt.Errorf("watch %s: %w", root, err)
			}
			continue
		}
		w.addDirsRecursive(root)
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error { return w.w.Close() }

// Run delivers relevant change paths to onChange until ctx is done or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				onChange(ev.Name)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

// handle reports whether ev should trigger a rebuild.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if shouldIgnoreEvent(ev.Name) || w.isIgnored(ev.Name) {
		return false
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(ev.Name)
		}
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), "op", ev.Op.String())
	return true
}

func (w *Watcher) isIgnored(path string) bool {
	path = filepath.Clean(path)
	for _, p := range w.ignored {
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
			return filepath.SkipDir
		}
		if w.isIgnored(path) {
			return filepath.SkipDir
		}
		if err := w.w.Add(path); err != nil {
			w.logger.Warn("watch add failed", slog.String("dir", path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for editor, hidden and OS scratch files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "4913"
}
