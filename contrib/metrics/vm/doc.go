// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "tandem":
//
//	collector := vm.New()
//	client, _ := tandem.Connect(dsn,
//	    tandem.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_query_total{transport="rest"}
//   - myapp_query_duration_seconds{transport="stream"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Statements:
//   - {prefix}_query_total{transport} - Counter of submitted statements
//   - {prefix}_query_errors_total{transport} - Counter of failed statements
//   - {prefix}_query_duration_seconds{transport} - Histogram of statement latencies
//
// Result delivery:
//   - {prefix}_page_total{transport} - Counter of fetched result pages
//   - {prefix}_row_total{transport} - Counter of rows delivered to callers
//   - {prefix}_decode_errors_total{transport} - Counter of row decode failures
//
// Transport:
//   - {prefix}_retry_total{transport} - Counter of page fetch retries
//   - {prefix}_cancel_total{transport} - Counter of statement cancellations
package vm
