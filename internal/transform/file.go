package transform

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"mime"
	"path"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// DefaultAssetName is the output pattern of file and url transforms.
const DefaultAssetName = "[hash].[ext]"

type fileOptions struct {
	Name       string `yaml:"name"`
	PublicPath string `yaml:"public_path"`
	HashLength int    `yaml:"hash_length"`
}

// fileTransform emits the content verbatim as an asset and exports its URL.
type fileTransform struct {
	name       string
	publicPath string
	hashLength int
}

func newFile(opts Options) (Transform, error) {
	var o fileOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	return newFileTransform(o, opts.Env)
}

func newFileTransform(o fileOptions, env Env) (*fileTransform, error) {
	if o.Name == "" {
		o.Name = DefaultAssetName
	}
	if o.PublicPath == "" {
		o.PublicPath = env.PublicPath
	}
	if o.HashLength == 0 {
		o.HashLength = env.HashLength
	}
	if o.HashLength < 0 || o.HashLength > sha256.Size*2 {
		return nil, fmt.Errorf("hash_length must be between 1 and %d", sha256.Size*2)
	}
	return &fileTransform{name: o.Name, publicPath: o.PublicPath, hashLength: o.HashLength}, nil
}

func (t *fileTransform) Name() string { return "file" }

func (t *fileTransform) Apply(_ context.Context, in Input) (Output, error) {
	name := ExpandAssetName(t.name, in.ID, in.Bytes, t.hashLength)
	url := t.publicPath + name
	out := in.Pass()
	out.Bytes = exportString(url)
	out.Family = module.FamilyScript
	out.Meta[module.MetaURL] = url
	out.References = nil
	out.SideArtifacts = []module.SideArtifact{{
		Name:    "file",
		Family:  module.FamilyAsset,
		Content: in.Bytes,
		Meta:    map[string]string{module.MetaOutputName: name, module.MetaURL: url},
	}}
	return out, nil
}

// ExpandAssetName fills [name], [ext], [path] and [hash] in an asset name
// pattern. [path] is the module's directory with a trailing slash.
func ExpandAssetName(pattern, id string, content []byte, hashLength int) string {
	base := path.Base(id)
	ext := path.Ext(base)
	dir := path.Dir(id)
	if dir == "." {
		dir = ""
	} else {
		dir += "/"
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	if hashLength > 0 && hashLength < len(hash) {
		hash = hash[:hashLength]
	}
	r := strings.NewReplacer(
		"[name]", strings.TrimSuffix(base, ext),
		"[ext]", strings.TrimPrefix(ext, "."),
		"[path]", dir,
		"[hash]", hash,
	)
	return strings.TrimLeft(strings.TrimPrefix(r.Replace(pattern), "./"), "/")
}

type urlOptions struct {
	fileOptions `yaml:",inline"`
	// Limit is the largest size in bytes inlined as a data URI.
	Limit    int    `yaml:"limit"`
	Mimetype string `yaml:"mimetype"`
}

// urlTransform inlines small content as a data URI and falls back to file.
type urlTransform struct {
	file     *fileTransform
	limit    int
	mimetype string
}

func newURL(opts Options) (Transform, error) {
	var o urlOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	if o.Limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative")
	}
	ft, err := newFileTransform(o.fileOptions, opts.Env)
	if err != nil {
		return nil, err
	}
	return &urlTransform{file: ft, limit: o.Limit, mimetype: o.Mimetype}, nil
}

func (t *urlTransform) Name() string { return "url" }

func (t *urlTransform) Apply(ctx context.Context, in Input) (Output, error) {
	if len(in.Bytes) > t.limit {
		return t.file.Apply(ctx, in)
	}
	mt := t.mimetype
	if mt == "" {
		mt = mime.TypeByExtension(path.Ext(in.ID))
	}
	if mt == "" {
		mt = "application/octet-stream"
	}
	uri := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(in.Bytes)
	out := in.Pass()
	out.Bytes = exportString(uri)
	out.Family = module.FamilyScript
	out.Meta[module.MetaURL] = uri
	out.References = nil
	return out, nil
}
