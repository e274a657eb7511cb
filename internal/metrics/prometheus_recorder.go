package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "assetpipe"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	stageResults  *prom.CounterVec
	buildOutcome  *prom.CounterVec
	transforms    *prom.CounterVec
	cacheLookups  *prom.CounterVec
	graphModules  prom.Gauge
	artifactBytes *prom.HistogramVec
	rebuilds      *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		transforms: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transforms_total",
			Help:      "Transform applications by transform name and result",
		}, []string{"transform", "result"}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transform_cache_lookups_total",
			Help:      "Transform cache lookups by hit/miss",
		}, []string{"result"}),
		graphModules: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_modules",
			Help:      "Modules in the last resolved graph",
		}),
		artifactBytes: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Size of emitted artifacts",
			Buckets:   prom.ExponentialBuckets(256, 4, 10),
		}, []string{"family"}),
		rebuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dev_rebuild_triggers_total",
			Help:      "Dev session rebuild triggers by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.transforms, pr.cacheLookups, pr.graphModules, pr.artifactBytes, pr.rebuilds)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncTransform(name string, success bool) {
	if p == nil {
		return
	}
	p.transforms.WithLabelValues(name, resultOf(success)).Inc()
}

func (p *PrometheusRecorder) IncCacheLookup(hit bool) {
	if p == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.cacheLookups.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetGraphModules(n int) {
	if p == nil {
		return
	}
	p.graphModules.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveArtifactBytes(family string, n int) {
	if p == nil {
		return
	}
	p.artifactBytes.WithLabelValues(family).Observe(float64(n))
}

func (p *PrometheusRecorder) IncRebuildTrigger(reason string) {
	if p == nil {
		return
	}
	p.rebuilds.WithLabelValues(reason).Inc()
}

func resultOf(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
