// Package metrics provides the service's Prometheus instrumentation.
//
// The metrics package owns a private registry holding execution counters,
// admission rejection counters, the in-flight gauge and execution duration
// histograms. The HTTP transport exposes the registry on /metrics.
package metrics
