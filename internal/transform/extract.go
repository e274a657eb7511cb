package transform

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

type extractOptions struct {
	Name string `yaml:"name"`
}

// extractStyle moves stylesheet content into a side module so it is emitted
// as a separate stylesheet, leaving an empty script module behind.
type extractStyle struct {
	name string
}

func newExtractStyle(opts Options) (Transform, error) {
	o := extractOptions{Name: "style"}
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	if o.Name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	return &extractStyle{name: o.Name}, nil
}

func (t *extractStyle) Name() string { return "extract-style" }

func (t *extractStyle) Apply(_ context.Context, in Input) (Output, error) {
	if in.Family != module.FamilyStyle {
		return Output{}, fmt.Errorf("expected style content, got %s (apply the css transform first)", in.Family)
	}
	out := in.Pass()
	out.Bytes = []byte("// extracted stylesheet\n")
	out.Family = module.FamilyScript
	out.Meta[module.MetaExtracted] = t.name
	out.References = nil
	out.SideArtifacts = []module.SideArtifact{{
		Name:       t.name,
		Family:     module.FamilyStyle,
		Content:    in.Bytes,
		References: in.References,
	}}
	return out, nil
}
