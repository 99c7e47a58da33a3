// Package metrics tracks run outcomes with Prometheus collectors and writes them in
// the text exposition format for the node_exporter textfile collector.
//
// Key components:
//   - Metric: Data points of one run, built from a session.Report.
//   - Metrics: Gauges for the last run and counters across runs on a private registry.
//
// Usage example:
//
//	m, _ := metrics.New()
//	m.Observe(metrics.NewMetric(report, stats))
//	err := m.WriteTextfile("/var/lib/node_exporter/ship.prom")
package metrics
