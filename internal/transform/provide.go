package transform

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// provider injects `var ident = require(spec);` into script modules that use
// an identifier from the table without declaring it.
type provider struct {
	idents  []string
	table   map[string]string
	targets map[string]string
	usage   map[string]*regexp.Regexp
	decl    map[string]*regexp.Regexp
}

func newProvider(table, targets map[string]string) *provider {
	if len(table) == 0 {
		return nil
	}
	p := &provider{
		table:   table,
		targets: targets,
		usage:   make(map[string]*regexp.Regexp, len(table)),
		decl:    make(map[string]*regexp.Regexp, len(table)),
	}
	for ident := range table {
		p.idents = append(p.idents, ident)
		q := regexp.QuoteMeta(ident)
		p.usage[ident] = regexp.MustCompile(`(?:^|[^\w$.])` + q + `(?:[^\w$:]|$)`)
		p.decl[ident] = regexp.MustCompile(`(?:^|[^\w$.])(?:var|let|const|function|class)\s+` + q + `(?:[^\w$]|$)`)
	}
	sort.Strings(p.idents)
	return p
}

func (p *provider) signature() string {
	parts := make([]string, 0, len(p.idents))
	for _, ident := range p.idents {
		parts = append(parts, ident+"="+p.table[ident]+"@"+p.targets[ident])
	}
	return strings.Join(parts, ",")
}

// apply rewrites out in place. Identifiers are injected in sorted order.
func (p *provider) apply(id string, out *module.Processed) {
	masked := module.MaskSource(out.Content, true)
	var prelude strings.Builder
	for _, ident := range p.idents {
		if target, ok := p.targets[ident]; ok && target == id {
			continue
		}
		if !p.usage[ident].Match(masked) || p.decl[ident].Match(masked) {
			continue
		}
		spec := p.table[ident]
		prelude.WriteString("var " + ident + " = require(" + strconv.Quote(spec) + ");\n")
		out.References = append(out.References, module.Reference{Specifier: spec, Kind: module.DepSync})
	}
	if prelude.Len() == 0 {
		return
	}
	out.Content = append([]byte(prelude.String()), out.Content...)
}
