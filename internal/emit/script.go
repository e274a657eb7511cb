package emit

import (
	"bytes"
	"encoding/json"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	"git.home.luguber.info/inful/assetpipe/internal/module"
)

const (
	chunkPrologue = "(function (ap) {\n  ap.modules = ap.modules || {};\n  ap.loaded = ap.loaded || {};\n"
	chunkEpilogue = "})((function (g) { return g.__assetpipe__ = g.__assetpipe__ || {}; })(typeof self !== \"undefined\" ? self : this));\n"
)

// manifestEntry tells the runtime how to load a chunk on demand.
type manifestEntry struct {
	URL      string   `json:"url"`
	Style    string   `json:"style,omitempty"`
	Requires []string `json:"requires,omitempty"`
}

// scriptBytes serializes a chunk's modules into the runtime format. Entry and
// common chunks carry the runtime; entry chunks also carry the manifest of
// on-demand chunks and start their entry module.
func (e *Emitter) scriptBytes(c *chunk.Chunk, plan *chunk.Plan, res *Result) ([]byte, error) {
	var b bytes.Buffer
	if c.Kind != chunk.KindAsync {
		b.WriteString(runtimeSource)
	}
	b.WriteString(chunkPrologue)

	if c.Kind == chunk.KindEntry {
		if err := writeManifest(&b, plan, res); err != nil {
			return nil, err
		}
	}

	for _, m := range c.Members {
		body, ok := moduleBody(m)
		if !ok {
			continue
		}
		deps, err := marshal(m.DependencyMap())
		if err != nil {
			return nil, err
		}
		b.WriteString("  ap.modules[" + mustString(m.ID) + "] = [function (module, exports, require) {\n")
		b.Write(body)
		if len(body) > 0 && body[len(body)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString("}, " + deps + "];\n")
	}

	b.WriteString("  ap.loaded[" + mustString(c.ID) + "] = true;\n")
	if c.Kind == chunk.KindEntry && c.Origin != nil {
		requires, err := marshal(nonNil(c.Requires))
		if err != nil {
			return nil, err
		}
		b.WriteString("  ap.start(" + requires + ", " + mustString(c.Origin.ID) + ");\n")
	}
	b.WriteString(chunkEpilogue)
	return b.Bytes(), nil
}

// moduleBody returns the function body registered for m. Side modules are
// not addressable from scripts and get no registration.
func moduleBody(m *module.Module) ([]byte, bool) {
	if m.IsSide() {
		return nil, false
	}
	if m.Family == module.FamilyScript {
		return module.RewriteDynamicImports(m.Content), true
	}
	if u := m.MetaValue(module.MetaURL); u != "" {
		return []byte("module.exports = " + mustString(u) + ";\n"), true
	}
	return nil, true
}

func writeManifest(b *bytes.Buffer, plan *chunk.Plan, res *Result) error {
	var loadable []*chunk.Chunk
	if c := plan.Common(); c != nil {
		loadable = append(loadable, c)
	}
	loadable = append(loadable, plan.OfKind(chunk.KindAsync)...)
	for _, c := range loadable {
		entry := manifestEntry{Requires: c.Requires}
		for _, a := range res.ForChunk(c.ID) {
			switch a.Family {
			case module.FamilyScript:
				entry.URL = a.URL
			case module.FamilyStyle:
				entry.Style = a.URL
			}
		}
		data, err := marshal(entry)
		if err != nil {
			return err
		}
		b.WriteString("  ap.manifest[" + mustString(c.ID) + "] = " + data + ";\n")
		if c.Kind == chunk.KindAsync && c.Origin != nil {
			b.WriteString("  ap.targets[" + mustString(c.Origin.ID) + "] = " + mustString(c.ID) + ";\n")
		}
	}
	return nil
}

func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func mustString(s string) string {
	out, _ := marshal(s)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
