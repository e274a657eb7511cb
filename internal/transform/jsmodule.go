package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// exportString renders a script module exporting s.
func exportString(s string) []byte {
	return []byte("module.exports = " + jsString(s) + ";\n")
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

const placeholderPrefix = "__assetpipe_ref_"

func placeholder(i int) string { return fmt.Sprintf("%s%d__", placeholderPrefix, i) }

// concatWithRequires turns rendered markup containing placeholders into a JS
// string expression where each placeholder is replaced by require(spec).
func concatWithRequires(rendered string, specs []string) string {
	if len(specs) == 0 {
		return jsString(rendered)
	}
	var parts []string
	rest := rendered
	for i, spec := range specs {
		ph := placeholder(i)
		idx := strings.Index(rest, ph)
		if idx < 0 {
			continue
		}
		parts = append(parts, jsString(rest[:idx]), "require("+jsString(spec)+")")
		rest = rest[idx+len(ph):]
	}
	parts = append(parts, jsString(rest))
	return strings.Join(parts, " + ")
}

// NormalizeReference maps a URL found in markup or stylesheets to a module
// specifier. Remote, data, fragment-only and templated URLs are not module
// references. Bare paths are relative, "~" selects the modules directory.
func NormalizeReference(raw string) (string, bool) {
	u := strings.TrimSpace(raw)
	switch {
	case u == "",
		strings.HasPrefix(u, "#"),
		strings.HasPrefix(u, "//"),
		strings.Contains(u, "${"),
		strings.Contains(u, "{{"):
		return "", false
	}
	if i := strings.Index(u, ":"); i > 0 && !strings.ContainsAny(u[:i], "/.?#") {
		// Any scheme (data:, http:, mailto:, ...) is external
		return "", false
	}
	switch {
	case strings.HasPrefix(u, "~"):
		return strings.TrimPrefix(u, "~"), true
	case strings.HasPrefix(u, "./"), strings.HasPrefix(u, "../"), strings.HasPrefix(u, "/"):
		return u, true
	}
	return "./" + u, true
}
