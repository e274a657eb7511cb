package transform

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

type markdownOptions struct {
	GFM    *bool `yaml:"gfm"`
	Unsafe bool  `yaml:"unsafe"`
	// Images resolves local image destinations as module references (default true).
	Images *bool `yaml:"images"`
}

// markdownTransform renders Markdown to HTML and exports the markup.
type markdownTransform struct {
	md     goldmark.Markdown
	images bool
}

func newMarkdown(opts Options) (Transform, error) {
	var o markdownOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	var gmOpts []goldmark.Option
	if o.GFM == nil || *o.GFM {
		gmOpts = append(gmOpts, goldmark.WithExtensions(extension.GFM))
	}
	if o.Unsafe {
		gmOpts = append(gmOpts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	return &markdownTransform{md: goldmark.New(gmOpts...), images: o.Images == nil || *o.Images}, nil
}

func (t *markdownTransform) Name() string { return "markdown" }

func (t *markdownTransform) Apply(_ context.Context, in Input) (Output, error) {
	root := t.md.Parser().Parse(text.NewReader(in.Bytes))

	var specs []string
	if t.images {
		_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
			if !entering {
				return gmast.WalkContinue, nil
			}
			if img, ok := n.(*gmast.Image); ok {
				if spec, ok := NormalizeReference(string(img.Destination)); ok {
					img.Destination = []byte(placeholder(len(specs)))
					specs = append(specs, spec)
				}
			}
			return gmast.WalkContinue, nil
		})
	}

	var buf bytes.Buffer
	if err := t.md.Renderer().Render(&buf, in.Bytes, root); err != nil {
		return Output{}, fmt.Errorf("render markdown: %w", err)
	}

	out := in.Pass()
	out.Family = module.FamilyScript
	out.Bytes = []byte("module.exports = " + concatWithRequires(buf.String(), specs) + ";\n")
	return out, nil
}
