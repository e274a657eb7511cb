package devsession

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/build"
)

// Status is the /__status payload.
type Status struct {
	Building     bool              `json:"building"`
	HasGoodBuild bool              `json:"has_good_build"`
	BuildID      string            `json:"build_id,omitempty"`
	Outcome      build.BuildStatus `json:"outcome,omitempty"`
	Error        string            `json:"error,omitempty"`
	FinishedAt   time.Time         `json:"finished_at,omitzero"`
	Rebuilds     int               `json:"rebuilds"`
}

// buildStatus tracks the current build state for error display.
type buildStatus struct {
	mu      sync.RWMutex
	current Status
	busy    func() bool
}

func (bs *buildStatus) record(report *build.Report, err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.current.Rebuilds++
	bs.current.Error = ""
	if report != nil {
		bs.current.Outcome = report.Status
		bs.current.FinishedAt = report.EndTime
	}
	if err != nil {
		bs.current.Error = err.Error()
		return
	}
	bs.current.HasGoodBuild = true
	if report != nil {
		bs.current.BuildID = report.BuildID
	}
}

func (bs *buildStatus) snapshot() Status {
	bs.mu.RLock()
	s := bs.current
	bs.mu.RUnlock()
	if bs.busy != nil {
		s.Building = bs.busy()
	}
	return s
}

func (bs *buildStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(bs.snapshot())
}
