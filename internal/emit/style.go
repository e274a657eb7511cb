package emit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gorilla/css/scanner"

	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/module"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// orderStyles returns the chunk's style modules so that every stylesheet
// follows the stylesheets it depends on.
func orderStyles(c *chunk.Chunk) []*module.Module {
	in := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		in[m.ID] = true
	}
	seen := make(map[string]bool, len(c.Members))
	var out []*module.Module
	var visit func(m *module.Module)
	visit = func(m *module.Module) {
		if seen[m.ID] {
			return
		}
		seen[m.ID] = true
		for _, d := range m.Dependencies {
			if d.Kind == module.DepSync && in[d.Target.ID] {
				visit(d.Target)
			}
		}
		if m.Family == module.FamilyStyle {
			out = append(out, m)
		}
	}
	for _, m := range c.Members {
		visit(m)
	}
	return out
}

func (e *Emitter) styleBytes(styles []*module.Module, res *Result) ([]byte, error) {
	var b bytes.Buffer
	for i, m := range styles {
		if i > 0 {
			b.WriteByte('\n')
		}
		css, err := rewriteURLs(m, res)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryEmit, "rewrite stylesheet urls").
				WithContext("module", m.ID).Build()
		}
		b.WriteString(css)
	}
	return b.Bytes(), nil
}

// rewriteURLs replaces url() references to modules with their final URLs.
func rewriteURLs(m *module.Module, res *Result) (string, error) {
	deps := make(map[string]*module.Module, len(m.Dependencies))
	for _, d := range m.Dependencies {
		deps[d.Specifier] = d.Target
	}
	var b strings.Builder
	s := scanner.New(string(m.Content))
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			return b.String(), nil
		case scanner.TokenError:
			return "", fmt.Errorf("line %d column %d: %s", tok.Line, tok.Column, tok.Value)
		case scanner.TokenURI:
			if spec, ok := transform.NormalizeReference(transform.ParseCSSURL(tok.Value)); ok {
				if target, ok := deps[spec]; ok {
					if u := urlFor(target, res); u != "" {
						b.WriteString(`url("` + escapeCSSString(u) + `")`)
						continue
					}
				}
			}
			b.WriteString(tok.Value)
		default:
			b.WriteString(tok.Value)
		}
	}
}

func escapeCSSString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `).Replace(s)
}
