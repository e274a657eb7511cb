package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// Inspection is the resolved graph and chunk plan of a configuration,
// computed without emitting anything.
type Inspection struct {
	Entries []config.Entry
	Rules   []string
	Graph   *module.Graph
	Plan    *chunk.Plan
}

// Inspect runs the resolve and plan stages only.
func (s *DefaultBuildService) Inspect(ctx context.Context, cfg *config.Config) (*Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bs := &buildState{cfg: cfg, report: &Report{StageDurations: make(map[string]float64), StartTime: time.Now()}}
	err := runStages(ctx, bs, metrics.NoopRecorder{}, []stageDef{
		{StageResolveGraph, s.stageResolveGraph(nil)},
		{StagePlanChunks, s.stagePlanChunks},
	})
	if err != nil {
		return nil, err
	}
	return &Inspection{Entries: cfg.Entries, Rules: bs.pipeline.Describe(), Graph: bs.graph, Plan: bs.plan}, nil
}

// WriteText prints a human readable summary.
func (in *Inspection) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("Entries:\n")
	for _, e := range in.Graph.Entries() {
		fmt.Fprintf(&b, "  %s -> %s\n", e.Name, e.Module.ID)
	}
	if len(in.Rules) > 0 {
		b.WriteString("Rules:\n")
		for _, r := range in.Rules {
			fmt.Fprintf(&b, "  %s\n", r)
		}
	}
	b.WriteString("Chunks:\n")
	for _, c := range in.Plan.Chunks() {
		fmt.Fprintf(&b, "  %s (%s) entries=[%s]", c.ID, c.Kind, strings.Join(c.OwningEntries, ", "))
		if len(c.Requires) > 0 {
			fmt.Fprintf(&b, " requires=[%s]", strings.Join(c.Requires, ", "))
		}
		b.WriteString("\n")
		for _, m := range c.Members {
			fmt.Fprintf(&b, "    %s [%s]\n", m.ID, m.Family)
		}
	}
	fmt.Fprintf(&b, "Modules: %d\n", in.Graph.Len())
	_, err := io.WriteString(w, b.String())
	return err
}

type inspectModule struct {
	ID           string              `json:"id"`
	Family       module.Family       `json:"family"`
	Chunks       []string            `json:"chunks"`
	Dependencies []inspectDependency `json:"dependencies,omitempty"`
}

type inspectDependency struct {
	Specifier string         `json:"specifier"`
	Target    string         `json:"target"`
	Kind      module.DepKind `json:"kind"`
}

// WriteJSON prints modules and chunks as JSON.
func (in *Inspection) WriteJSON(w io.Writer) error {
	out := struct {
		Entries []config.Entry  `json:"entries"`
		Rules   []string        `json:"rules"`
		Modules []inspectModule `json:"modules"`
		Chunks  []ChunkReport   `json:"chunks"`
	}{Entries: in.Entries, Rules: in.Rules, Chunks: chunkReports(in.Plan)}
	for _, m := range in.Graph.Modules() {
		im := inspectModule{ID: m.ID, Family: m.Family, Chunks: []string{}}
		for _, c := range in.Plan.ChunksOf(m.ID) {
			im.Chunks = append(im.Chunks, c.ID)
		}
		for _, d := range m.Dependencies {
			im.Dependencies = append(im.Dependencies, inspectDependency{Specifier: d.Specifier, Target: d.Target.ID, Kind: d.Kind})
		}
		out.Modules = append(out.Modules, im)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteDOT prints the module graph in Graphviz format. Async edges are dashed.
func (in *Inspection) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph modules {\n  rankdir=LR;\n  node [shape=box];\n")
	for _, e := range in.Graph.Entries() {
		fmt.Fprintf(&b, "  %s [style=bold];\n", strconv.Quote(e.Module.ID))
	}
	for _, m := range in.Graph.Modules() {
		chunks := make([]string, 0, 2)
		for _, c := range in.Plan.ChunksOf(m.ID) {
			chunks = append(chunks, c.ID)
		}
		label := m.ID
		if len(chunks) > 0 {
			label += "\n[" + strings.Join(chunks, ", ") + "]"
		}
		fmt.Fprintf(&b, "  %s [label=%s];\n", strconv.Quote(m.ID), strconv.Quote(label))
	}
	for _, m := range in.Graph.Modules() {
		for _, d := range m.Dependencies {
			attrs := ""
			if d.Kind == module.DepAsync {
				attrs = " [style=dashed]"
			}
			fmt.Fprintf(&b, "  %s -> %s%s;\n", strconv.Quote(m.ID), strconv.Quote(d.Target.ID), attrs)
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
