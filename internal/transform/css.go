package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/css/scanner"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

type cssOptions struct {
	// KeepImports leaves local @import rules in place instead of bundling them.
	KeepImports bool `yaml:"keep_imports"`
	// URL toggles url() reference collection (default true).
	URL *bool `yaml:"url"`
}

// cssTransform marks content as a stylesheet and collects its references.
type cssTransform struct {
	opts cssOptions
}

func newCSS(opts Options) (Transform, error) {
	var o cssOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	return &cssTransform{opts: o}, nil
}

func (t *cssTransform) Name() string { return "css" }

func (t *cssTransform) Apply(_ context.Context, in Input) (Output, error) {
	out := in.Pass()
	out.Family = module.FamilyStyle
	collectURLs := t.opts.URL == nil || *t.opts.URL

	var buf strings.Builder
	s := scanner.New(string(in.Bytes))
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			out.Bytes = []byte(buf.String())
			return out, nil
		case scanner.TokenError:
			return Output{}, fmt.Errorf("css: line %d column %d: %s", tok.Line, tok.Column, tok.Value)
		case scanner.TokenAtKeyword:
			if !strings.EqualFold(tok.Value, "@import") || t.opts.KeepImports {
				buf.WriteString(tok.Value)
				continue
			}
			rule, target, err := readImport(s, tok.Value)
			if err != nil {
				return Output{}, err
			}
			if spec, ok := NormalizeReference(target); ok {
				out.References = append(out.References, module.Reference{Specifier: spec, Kind: module.DepSync})
				continue
			}
			buf.WriteString(rule)
		case scanner.TokenURI:
			if collectURLs {
				if spec, ok := NormalizeReference(ParseCSSURL(tok.Value)); ok {
					out.References = append(out.References, module.Reference{Specifier: spec, Kind: module.DepSync})
				}
			}
			buf.WriteString(tok.Value)
		default:
			buf.WriteString(tok.Value)
		}
	}
}

// readImport consumes an @import rule through its terminating semicolon and
// returns the rule text and the imported URL.
func readImport(s *scanner.Scanner, keyword string) (string, string, error) {
	var rule strings.Builder
	rule.WriteString(keyword)
	target := ""
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			return rule.String(), target, nil
		case scanner.TokenError:
			return "", "", fmt.Errorf("css: line %d column %d: %s", tok.Line, tok.Column, tok.Value)
		case scanner.TokenString:
			if target == "" {
				target = unquote(tok.Value)
			}
		case scanner.TokenURI:
			if target == "" {
				target = ParseCSSURL(tok.Value)
			}
		}
		rule.WriteString(tok.Value)
		if tok.Type == scanner.TokenChar && tok.Value == ";" {
			return rule.String(), target, nil
		}
	}
}

// ParseCSSURL extracts the URL of a url(...) token.
func ParseCSSURL(tok string) string {
	v := strings.TrimSpace(tok)
	if len(v) >= 4 && strings.EqualFold(v[:4], "url(") {
		v = v[4:]
	}
	v = strings.TrimSuffix(v, ")")
	return unquote(strings.TrimSpace(v))
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
