// Package module discovers the dependency graph of a build: it resolves
// reference specifiers to files, runs each file through a Processor exactly
// once, and links the results into a deterministic graph.
package module

// Family classifies how a module's content is emitted.
type Family string

const (
	FamilyScript Family = "script"
	FamilyStyle  Family = "style"
	FamilyAsset  Family = "asset"
)

// DepKind distinguishes eagerly loaded references from on-demand ones.
type DepKind string

const (
	DepSync  DepKind = "sync"
	DepAsync DepKind = "async"
)

// Meta keys shared between transforms and the emitter.
const (
	MetaURL        = "url"         // Public URL (or data URI) a reference to the module resolves to
	MetaOutputName = "output_name" // Output path pattern for asset modules
	MetaExtracted  = "extracted"   // Set on script stubs whose style moved to a side module
)

// Reference is an unresolved dependency found in module content.
type Reference struct {
	Specifier string  `json:"specifier"`
	Kind      DepKind `json:"kind"`
}

// Dependency is a resolved, linked reference.
type Dependency struct {
	Specifier string
	Kind      DepKind
	Target    *Module
}

// Module is one node of the graph. Identity is ID: the root-relative slash
// path of the source file, or "<parent>!<name>" for side modules.
type Module struct {
	ID           string
	Path         string
	Raw          []byte
	Content      []byte
	Family       Family
	Dependencies []Dependency
	Meta         map[string]string
	Parent       *Module
	Cached       bool

	refs []resolvedRef
}

type resolvedRef struct {
	Reference
	targetID   string
	targetPath string
}

// SideModuleID names a module produced by a transform of parent.
func SideModuleID(parent, name string) string { return parent + "!" + name }

// IsSide reports whether the module was produced as a side artifact.
func (m *Module) IsSide() bool { return m.Parent != nil }

// MetaValue returns a metadata value or "".
func (m *Module) MetaValue(key string) string {
	if m.Meta == nil {
		return ""
	}
	return m.Meta[key]
}

// DependencyMap maps every specifier used by the module to its target ID.
func (m *Module) DependencyMap() map[string]string {
	out := make(map[string]string, len(m.Dependencies))
	for _, d := range m.Dependencies {
		out[d.Specifier] = d.Target.ID
	}
	return out
}

// Source is the input handed to a Processor.
type Source struct {
	ID   string
	Path string
	Raw  []byte
}

// SideArtifact is extra output produced while processing a module.
type SideArtifact struct {
	Name       string            `json:"name"`
	Family     Family            `json:"family"`
	Content    []byte            `json:"content"`
	Meta       map[string]string `json:"meta,omitempty"`
	References []Reference       `json:"references,omitempty"`
}

// Processed is the result of running a module through the transform chains.
type Processed struct {
	Content       []byte            `json:"content"`
	Family        Family            `json:"family"`
	Meta          map[string]string `json:"meta,omitempty"`
	References    []Reference       `json:"references,omitempty"`
	SideArtifacts []SideArtifact    `json:"side_artifacts,omitempty"`
	Cached        bool              `json:"-"`
}
