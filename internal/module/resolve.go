package module

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no file matches a specifier.
var ErrNotFound = errors.New("module not found")

// Resolver implements node-style specifier resolution rooted at Root.
type Resolver struct {
	Root       string
	Extensions []string
	ModulesDir string
	Alias      map[string]string
}

// NewResolver creates a resolver for root with the given probing settings.
func NewResolver(root string, extensions []string, modulesDir string, alias map[string]string) *Resolver {
	if modulesDir == "" {
		modulesDir = "node_modules"
	}
	return &Resolver{Root: filepath.Clean(root), Extensions: extensions, ModulesDir: modulesDir, Alias: alias}
}

// Resolve maps specifier, as written in a module located in fromDir, to a
// module ID and an absolute path. Query strings and fragments are ignored.
func (r *Resolver) Resolve(fromDir, specifier string) (id, absPath string, err error) {
	spec := stripQuery(specifier)
	if spec == "" {
		return "", "", fmt.Errorf("%w: empty specifier", ErrNotFound)
	}
	spec, base := r.applyAlias(spec, fromDir)

	var candidates []string
	switch {
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"), spec == ".", spec == "..":
		candidates = []string{filepath.Join(base, filepath.FromSlash(spec))}
	case strings.HasPrefix(spec, "/"):
		candidates = []string{filepath.Join(r.Root, filepath.FromSlash(spec))}
	default:
		candidates = r.moduleDirs(fromDir, spec)
	}

	for _, c := range candidates {
		if p, ok := r.resolveFile(c); ok {
			return r.IDFor(p), p, nil
		}
		if p, ok := r.resolveDir(c); ok {
			return r.IDFor(p), p, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, specifier)
}

// IDFor returns the stable module ID for an absolute path.
func (r *Resolver) IDFor(absPath string) string {
	rel, err := filepath.Rel(r.Root, absPath)
	if err != nil {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}

// applyAlias rewrites spec through the longest matching alias. Relative
// alias targets resolve from Root, so the base directory is returned too.
func (r *Resolver) applyAlias(spec, fromDir string) (string, string) {
	best := ""
	for name := range r.Alias {
		if (spec == name || strings.HasPrefix(spec, name+"/")) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return spec, fromDir
	}
	return r.Alias[best] + strings.TrimPrefix(spec, best), r.Root
}

// moduleDirs lists <dir>/<modules_dir>/<spec> for fromDir and each parent up to Root.
func (r *Resolver) moduleDirs(fromDir, spec string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(dir string) {
		p := filepath.Join(dir, r.ModulesDir, filepath.FromSlash(spec))
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	dir := filepath.Clean(fromDir)
	for within(r.Root, dir) {
		add(dir)
		if dir == r.Root {
			break
		}
		dir = filepath.Dir(dir)
	}
	add(r.Root)
	return out
}

func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (r *Resolver) resolveFile(p string) (string, bool) {
	if isFile(p) {
		return p, true
	}
	for _, ext := range r.Extensions {
		if isFile(p + ext) {
			return p + ext, true
		}
	}
	return "", false
}

func (r *Resolver) resolveDir(dir string) (string, bool) {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return "", false
	}
	if main := packageMain(dir); main != "" {
		mainPath := filepath.Join(dir, filepath.FromSlash(main))
		if p, ok := r.resolveFile(mainPath); ok {
			return p, true
		}
		if p, ok := r.resolveIndex(mainPath); ok {
			return p, true
		}
	}
	return r.resolveIndex(dir)
}

func (r *Resolver) resolveIndex(dir string) (string, bool) {
	for _, ext := range r.Extensions {
		p := filepath.Join(dir, "index"+ext)
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

func packageMain(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Main
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func stripQuery(spec string) string {
	if i := strings.IndexAny(spec, "?#"); i >= 0 {
		return spec[:i]
	}
	return spec
}
