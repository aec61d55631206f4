// Package metric provides a Prometheus metrics registry for livesub components.
//
// Components receive a MetricsRegistrar and register their own counters and
// gauges under a component name, which keeps metric ownership with the
// component while the registry enforces uniqueness and exposes everything
// through a single Prometheus registry.
//
// Typical wiring:
//
//	reg := metric.NewMetricsRegistry()
//	m := mux.New[Doc](source, mux.WithMetrics[Doc](reg))
//	http.Handle("/metrics", reg.Handler())
package metric
