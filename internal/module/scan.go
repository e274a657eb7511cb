package module

import (
	"bytes"
	"regexp"
	"sort"
)

const quoted = `(?:'([^'\n]+)'|"([^"\n]+)")`

var (
	requirePattern       = regexp.MustCompile(`(?:^|[^\w$.])require\s*\(\s*` + quoted + `\s*\)`)
	dynamicImportPattern = regexp.MustCompile(`(?:^|[^\w$.])import\s*\(\s*` + quoted + `\s*\)`)
	importFromPattern    = regexp.MustCompile(`(?:^|[^\w$.])import\s+[\w$*{}\s,]+?\s+from\s*` + quoted)
	bareImportPattern    = regexp.MustCompile(`(?:^|[^\w$.])import\s*` + quoted)
	exportFromPattern    = regexp.MustCompile(`(?:^|[^\w$.])export\s+(?:\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s*from\s*` + quoted)
	exportDeclPattern    = regexp.MustCompile(`(?:^|[^\w$.])export\s*(?:\{|\*|(?:default|const|let|var|function|class|async)\b)`)
)

type scanPattern struct {
	re   *regexp.Regexp
	kind DepKind
}

var scanPatterns = []scanPattern{
	{requirePattern, DepSync},
	{dynamicImportPattern, DepAsync},
	{importFromPattern, DepSync},
	{bareImportPattern, DepSync},
	{exportFromPattern, DepSync},
}

// ScanReferences finds require(), import and export-from references in
// script source, in source order. Comments and string contents are ignored;
// specifiers are read back from the original source.
//
// Static import and export statements are recognized so their targets join
// the graph, but the emitted module wrapper is a plain function: a script
// that still contains them after its transform chain is rejected by the
// Builder (see HasStaticModuleSyntax). Such sources need a transpiling
// command transform.
func ScanReferences(src []byte) []Reference {
	masked := MaskSource(src, true)
	type hit struct {
		pos int
		ref Reference
	}
	var hits []hit
	for _, p := range scanPatterns {
		for _, m := range p.re.FindAllSubmatchIndex(masked, -1) {
			spec := submatch(src, m)
			if spec == "" {
				continue
			}
			hits = append(hits, hit{pos: m[0], ref: Reference{Specifier: spec, Kind: p.kind}})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	refs := make([]Reference, 0, len(hits))
	for _, h := range hits {
		refs = append(refs, h.ref)
	}
	return DedupeReferences(refs)
}

// HasStaticModuleSyntax reports whether script source contains a static
// import or export statement outside comments and strings.
func HasStaticModuleSyntax(src []byte) bool {
	masked := MaskSource(src, true)
	for _, re := range []*regexp.Regexp{importFromPattern, bareImportPattern, exportFromPattern, exportDeclPattern} {
		if re.Match(masked) {
			return true
		}
	}
	return false
}

// DedupeReferences drops repeated (specifier, kind) pairs keeping first occurrence.
func DedupeReferences(refs []Reference) []Reference {
	seen := make(map[Reference]bool, len(refs))
	out := refs[:0:0]
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// submatch returns the first non-empty quoted group of a match.
func submatch(src []byte, m []int) string {
	for g := 1; 2*g+1 < len(m); g++ {
		if m[2*g] >= 0 {
			return string(src[m[2*g]:m[2*g+1]])
		}
	}
	return ""
}

// MaskSource returns a copy of script source with comments replaced by
// spaces (and, when maskStrings is set, string and template literal bodies
// too), preserving byte offsets and newlines.
func MaskSource(src []byte, maskStrings bool) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	blank := func(from, to int) {
		for k := from; k < to && k < len(out); k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			j := i
			for j < len(src) && src[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			j := i + 2
			for j+1 < len(src) && !(src[j] == '*' && src[j+1] == '/') {
				j++
			}
			end := min(j+2, len(src))
			blank(i, end)
			i = end - 1
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				} else if src[j] == '\n' && c != '`' {
					break
				}
				j++
			}
			if maskStrings {
				blank(i+1, j)
			}
			i = j
		}
	}
	return out
}

// RewriteDynamicImports replaces dynamic import("x") calls with
// require.async("x") so the bundle runtime loads them.
func RewriteDynamicImports(src []byte) []byte {
	masked := MaskSource(src, true)
	matches := dynamicImportPattern.FindAllIndex(masked, -1)
	if len(matches) == 0 {
		return src
	}
	out := make([]byte, 0, len(src)+len(matches)*8)
	last := 0
	for _, m := range matches {
		kw := m[0] + bytes.Index(masked[m[0]:m[1]], []byte("import"))
		out = append(out, src[last:kw]...)
		out = append(out, "require.async"...)
		last = kw + len("import")
	}
	return append(out, src[last:]...)
}
