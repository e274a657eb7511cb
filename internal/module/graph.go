package module

// EntryPoint is a named root of the graph.
type EntryPoint struct {
	Name       string
	ModulePath string
}

// Entry binds an entry name to its resolved module.
type Entry struct {
	Name   string
	Module *Module
}

// Graph is the linked module graph of one build.
type Graph struct {
	modules map[string]*Module
	order   []*Module
	entries []Entry
}

// Module looks up a module by ID.
func (g *Graph) Module(id string) (*Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// Modules returns modules in discovery order (DFS preorder from entries in declaration order).
func (g *Graph) Modules() []*Module {
	out := make([]*Module, len(g.order))
	copy(out, g.order)
	return out
}

// Entries returns entries in declaration order.
func (g *Graph) Entries() []Entry {
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Len returns the number of modules.
func (g *Graph) Len() int { return len(g.order) }

// Walk visits modules reachable from `from` in DFS preorder, each once. With
// syncOnly set async edges are not followed. Returning false from fn skips
// the module's dependencies.
func (g *Graph) Walk(from *Module, syncOnly bool, fn func(*Module) bool) {
	seen := make(map[string]bool)
	var visit func(m *Module)
	visit = func(m *Module) {
		if seen[m.ID] {
			return
		}
		seen[m.ID] = true
		if !fn(m) {
			return
		}
		for _, d := range m.Dependencies {
			if syncOnly && d.Kind != DepSync {
				continue
			}
			visit(d.Target)
		}
	}
	visit(from)
}

// FindCycle returns the first cycle over sync edges as a list of IDs whose
// first and last element are equal, or nil when the sync graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.order))
	var stack []string
	var found []string

	var visit func(m *Module) bool
	visit = func(m *Module) bool {
		color[m.ID] = grey
		stack = append(stack, m.ID)
		for _, d := range m.Dependencies {
			if d.Kind != DepSync {
				continue
			}
			switch color[d.Target.ID] {
			case grey:
				for i, id := range stack {
					if id == d.Target.ID {
						found = append(append([]string{}, stack[i:]...), id)
						return true
					}
				}
			case white:
				if visit(d.Target) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[m.ID] = black
		return false
	}

	for _, m := range g.order {
		if color[m.ID] == white && visit(m) {
			return found
		}
	}
	return nil
}
