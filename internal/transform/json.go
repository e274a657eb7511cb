package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// jsonTransform validates JSON content and exports it as a script module.
type jsonTransform struct{}

func newJSON(opts Options) (Transform, error) {
	var o struct{}
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	return jsonTransform{}, nil
}

func (jsonTransform) Name() string { return "json" }

func (jsonTransform) Apply(_ context.Context, in Input) (Output, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, in.Bytes); err != nil {
		return Output{}, fmt.Errorf("invalid json: %w", err)
	}
	out := in.Pass()
	out.Family = module.FamilyScript
	out.Bytes = []byte("module.exports = " + compact.String() + ";\n")
	return out, nil
}

// rawTransform exports the content as a string.
type rawTransform struct{}

func newRaw(opts Options) (Transform, error) {
	var o struct{}
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	return rawTransform{}, nil
}

func (rawTransform) Name() string { return "raw" }

func (rawTransform) Apply(_ context.Context, in Input) (Output, error) {
	out := in.Pass()
	out.Family = module.FamilyScript
	out.Bytes = exportString(string(in.Bytes))
	return out, nil
}
