package build

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/emit"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/module"
	"git.home.luguber.info/inful/assetpipe/internal/observability"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// StageName identifies one step of a build.
type StageName string

const (
	StageResolveGraph  StageName = "resolve_graph"
	StagePlanChunks    StageName = "plan_chunks"
	StageEmitArtifacts StageName = "emit_artifacts"
	StageRenderPages   StageName = "render_pages"
	StagePromoteOutput StageName = "promote_output"
)

// Stage is a discrete unit of work in the build.
type Stage func(ctx context.Context, bs *buildState) error

type stageDef struct {
	name StageName
	fn   Stage
}

// buildState carries mutable state across stages.
type buildState struct {
	cfg      *config.Config
	report   *Report
	outDir   string
	stageDir string

	pipeline *transform.Pipeline
	builder  *module.Builder
	graph    *module.Graph
	plan     *chunk.Plan
	emitter  *emit.Emitter
	result   *emit.Result
	pages    []emit.Shell
}

// runStages executes stages in order, recording timing and stopping on the
// first error.
func runStages(ctx context.Context, bs *buildState, recorder metrics.Recorder, stages []stageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			recorder.IncStageResult(string(st.name), metrics.ResultCanceled)
			return newCanceledStageError(st.name, ctx.Err())
		default:
		}
		stageCtx := observability.WithStage(ctx, string(st.name))
		t0 := time.Now()
		err := st.fn(stageCtx, bs)
		dur := time.Since(t0)
		bs.report.StageDurations[string(st.name)] = float64(dur.Microseconds()) / 1000
		recorder.ObserveStageDuration(string(st.name), dur)
		if err != nil {
			var se *StageError
			if !errors.As(err, &se) {
				if isCancellation(err) {
					se = newCanceledStageError(st.name, err)
				} else {
					se = newFatalStageError(st.name, err)
				}
			}
			if se.Kind == StageErrorCanceled {
				recorder.IncStageResult(string(st.name), metrics.ResultCanceled)
			} else {
				recorder.IncStageResult(string(st.name), metrics.ResultFatal)
			}
			return se
		}
		recorder.IncStageResult(string(st.name), metrics.ResultSuccess)
	}
	return nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
