// Package metrics provides build observability for assetpipe.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks at call sites:
//
//	b := build.New(cfg, build.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The dev session exposes the registry through HTTPHandler when dev.metrics
// is enabled.
package metrics
