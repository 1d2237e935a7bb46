// Package metrics provides run metrics for legacyckpt.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks at call sites:
//
//	gen := generator.New(cfg, runner).WithRecorder(metrics.NoopRecorder{})
//
// A CI job that wants numbers swaps in a PrometheusRecorder and, at the end
// of the run, writes the registry in the node_exporter textfile format:
//
//	reg := prom.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	...
//	_ = metrics.WriteTextfile(path, reg)
package metrics
