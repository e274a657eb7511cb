package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/emit"
)

// BuildService is the canonical interface for executing builds.
type BuildService interface {
	// Run executes resolve → plan → emit → render → promote.
	Run(ctx context.Context, req BuildRequest) (*Report, error)
}

// BuildRequest contains the inputs of one build.
type BuildRequest struct {
	// Config is the loaded configuration for this build.
	Config *config.Config

	// OutputDir overrides the configured output directory when set.
	OutputDir string

	// Trigger describes why the build runs ("cli", "watch", ...).
	Trigger string
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	BuildStatusSuccess   BuildStatus = "success"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool { return s == BuildStatusSuccess }

// Report is the account of one build, written as manifest.json into the
// promoted output directory.
type Report struct {
	BuildID   string        `json:"build_id"`
	Trigger   string        `json:"trigger,omitempty"`
	Status    BuildStatus   `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"-"`
	OutputDir string        `json:"-"`

	StageDurations map[string]float64 `json:"stage_durations_ms"`
	Modules        int                `json:"modules"`
	Processed      int                `json:"processed"`
	CacheHits      int                `json:"cache_hits"`
	Chunks         []ChunkReport      `json:"chunks"`
	Artifacts      []*emit.Artifact   `json:"artifacts"`
	Pages          []emit.Shell       `json:"pages"`
	Error          string             `json:"error,omitempty"`
}

// ChunkReport summarizes one planned chunk.
type ChunkReport struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Kind          chunk.Kind `json:"kind"`
	Members       []string   `json:"members"`
	OwningEntries []string   `json:"owning_entries"`
	Requires      []string   `json:"requires,omitempty"`
}

func chunkReports(plan *chunk.Plan) []ChunkReport {
	chunks := plan.Chunks()
	out := make([]ChunkReport, 0, len(chunks))
	for _, c := range chunks {
		cr := ChunkReport{ID: c.ID, Name: c.Name, Kind: c.Kind, OwningEntries: c.OwningEntries, Requires: c.Requires}
		for _, m := range c.Members {
			cr.Members = append(cr.Members, m.ID)
		}
		out = append(out, cr)
	}
	return out
}
