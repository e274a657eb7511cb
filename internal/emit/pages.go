package emit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/assetpipe/internal/builderr"
	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// FamilyPage marks rendered HTML shells.
const FamilyPage module.Family = "page"

// Shell is a rendered HTML page.
type Shell struct {
	Template   string   `json:"template"`
	OutputPath string   `json:"path"`
	Injected   []string `json:"injected"`
}

// RenderPages renders every page template with references to exactly the
// chunks on its allow-list, in list order. commonName may appear on an
// allow-list without a common chunk existing.
func (e *Emitter) RenderPages(ctx context.Context, res *Result, plan *chunk.Plan, pages []config.PageConfig, commonName, dir string) ([]Shell, error) {
	shells := make([]Shell, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", builderr.ErrBuildAborted, err)
		}
		shell, err := e.renderPage(res, plan, page, commonName, dir)
		if err != nil {
			var oc *builderr.OutputCollisionError
			if errors.As(err, &oc) || ferrors.IsClassified(err) {
				return nil, err
			}
			return nil, ferrors.WrapError(err, ferrors.CategoryEmit, "render page").
				WithContext("page", i).WithContext("template", page.Template).Build()
		}
		e.logger.Debug("Rendered page", logfields.Page(shell.OutputPath), logfields.Count(len(shell.Injected)))
		shells = append(shells, shell)
	}
	return shells, nil
}

func (e *Emitter) renderPage(res *Result, plan *chunk.Plan, page config.PageConfig, commonName, dir string) (Shell, error) {
	var artifacts []*Artifact
	for _, name := range page.Chunks {
		c, ok := plan.Chunk(name)
		if !ok {
			if name == commonName {
				continue
			}
			return Shell{}, ferrors.ConfigError(fmt.Sprintf("page %s: unknown chunk %q", page.Filename, name)).Build()
		}
		artifacts = append(artifacts, res.ForChunk(c.ID)...)
	}

	src, err := os.ReadFile(e.resolve(page.Template))
	if err != nil {
		return Shell{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read page template").
			WithContext("template", page.Template).Build()
	}
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return Shell{}, err
	}
	head, body := findElement(doc, atom.Head), findElement(doc, atom.Body)
	if head == nil || body == nil {
		return Shell{}, fmt.Errorf("template has no head or body")
	}

	shell := Shell{Template: page.Template, OutputPath: page.Filename}
	if page.Favicon != "" {
		icon, err := e.favicon(res, page.Favicon, dir)
		if err != nil {
			return Shell{}, err
		}
		head.AppendChild(element(atom.Link, "rel", "icon", "href", icon.URL))
	}

	if page.Inject != config.InjectNone {
		scripts := head
		if page.Inject != config.InjectHead {
			scripts = body
		}
		for _, a := range artifacts {
			u := a.URL
			if page.Hash {
				u += "?" + a.ContentHash
			}
			switch a.Family {
			case module.FamilyStyle:
				head.AppendChild(element(atom.Link, "href", u, "rel", "stylesheet"))
			case module.FamilyScript:
				scripts.AppendChild(element(atom.Script, "src", u))
			}
			shell.Injected = append(shell.Injected, u)
		}
	}

	if page.Minify.RemoveComments {
		removeComments(doc)
	}
	if page.Minify.CollapseWhitespace {
		collapseWhitespace(doc)
	}

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return Shell{}, err
	}
	a := &Artifact{Family: FamilyPage, OutputPath: page.Filename, URL: e.opts.PublicPath + page.Filename,
		ContentHash: contentHash(out.Bytes(), e.opts.HashLength), Bytes: out.Bytes()}
	if _, err := res.claim(a, "page "+page.Template); err != nil {
		return Shell{}, err
	}
	res.Artifacts = append(res.Artifacts, a)
	if err := writeFile(dir, a.OutputPath, a.Bytes); err != nil {
		return Shell{}, err
	}
	return shell, nil
}

// favicon copies the icon to the output root once per build.
func (e *Emitter) favicon(res *Result, p, dir string) (*Artifact, error) {
	data, err := os.ReadFile(e.resolve(p))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read favicon").WithContext("path", p).Build()
	}
	name := path.Base(filepath.ToSlash(p))
	a := &Artifact{Family: module.FamilyAsset, OutputPath: name, URL: e.opts.PublicPath + name,
		ContentHash: contentHash(data, e.opts.HashLength), Bytes: data}
	dup, err := res.claim(a, "favicon "+p)
	if err != nil {
		return nil, err
	}
	if dup {
		return res.byPath(name), nil
	}
	res.Artifacts = append(res.Artifacts, a)
	return a, writeFile(dir, name, data)
}

func (e *Emitter) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.root, filepath.FromSlash(p))
}

func element(a atom.Atom, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// collapseWhitespace drops whitespace-only text and folds runs of whitespace
// into one space, leaving preformatted and raw text elements alone.
func collapseWhitespace(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Pre, atom.Textarea, atom.Script, atom.Style:
			return
		}
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			if strings.TrimSpace(c.Data) == "" {
				n.RemoveChild(c)
			} else {
				c.Data = whitespaceRun.ReplaceAllString(c.Data, " ")
			}
		} else {
			collapseWhitespace(c)
		}
		c = next
	}
}
