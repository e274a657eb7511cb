package transform

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

type htmlOptions struct {
	// Attrs lists "tag:attribute" pairs whose values are module references.
	// A tag of "*" matches any element.
	Attrs []string `yaml:"attrs"`
	// Minimize drops comments and whitespace-only text between elements.
	Minimize bool `yaml:"minimize"`
}

type attrSel struct{ tag, attr string }

// htmlTransform exports markup as a string, requiring the assets it references.
type htmlTransform struct {
	attrs    []attrSel
	minimize bool
}

func newHTML(opts Options) (Transform, error) {
	o := htmlOptions{Attrs: []string{"img:src"}}
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	t := &htmlTransform{minimize: o.Minimize}
	for _, a := range o.Attrs {
		tag, attr, ok := strings.Cut(a, ":")
		if !ok || tag == "" || attr == "" {
			return nil, fmt.Errorf("invalid attrs entry %q (expected tag:attribute)", a)
		}
		t.attrs = append(t.attrs, attrSel{tag: strings.ToLower(tag), attr: strings.ToLower(attr)})
	}
	return t, nil
}

func (t *htmlTransform) Name() string { return "html" }

func (t *htmlTransform) selects(tag, attr string) bool {
	for _, s := range t.attrs {
		if (s.tag == "*" || s.tag == tag) && s.attr == attr {
			return true
		}
	}
	return false
}

func (t *htmlTransform) Apply(_ context.Context, in Input) (Output, error) {
	nodes, err := parseMarkup(in.Bytes)
	if err != nil {
		return Output{}, fmt.Errorf("parse html: %w", err)
	}

	var specs []string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			nextSibling := c.NextSibling
			if t.minimize && (c.Type == html.CommentNode || (c.Type == html.TextNode && strings.TrimSpace(c.Data) == "")) {
				n.RemoveChild(c)
				c = nextSibling
				continue
			}
			visit(c)
			c = nextSibling
		}
		if n.Type != html.ElementNode {
			return
		}
		for i, a := range n.Attr {
			if !t.selects(n.Data, a.Key) {
				continue
			}
			spec, ok := NormalizeReference(a.Val)
			if !ok {
				continue
			}
			n.Attr[i].Val = placeholder(len(specs))
			specs = append(specs, spec)
		}
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		visit(n)
		if t.minimize && (n.Type == html.CommentNode || (n.Type == html.TextNode && strings.TrimSpace(n.Data) == "")) {
			continue
		}
		if err := html.Render(&buf, n); err != nil {
			return Output{}, fmt.Errorf("render html: %w", err)
		}
	}

	out := in.Pass()
	out.Family = module.FamilyScript
	out.Bytes = []byte("module.exports = " + concatWithRequires(buf.String(), specs) + ";\n")
	return out, nil
}

// parseMarkup parses a full document when one is given and a body fragment
// otherwise.
func parseMarkup(src []byte) ([]*html.Node, error) {
	head := strings.ToLower(strings.TrimSpace(string(src[:min(len(src), 64)])))
	if strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html") {
		doc, err := html.Parse(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		var nodes []*html.Node
		for c := doc.FirstChild; c != nil; c = c.NextSibling {
			nodes = append(nodes, c)
		}
		return nodes, nil
	}
	return html.ParseFragment(bytes.NewReader(src), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
}
