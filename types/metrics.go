package types

// MetricsCollector defines methods for collecting driver metrics.
//
// All methods accept a Transport parameter for labeling, so deployments that
// mix both protocols can tell them apart. Implementations must be safe for
// concurrent use.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := tandem.Connect(dsn, tandem.WithMetrics(collector))
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Statements
	// ----------------------

	// IncQueryTotal increments the submitted statement counter.
	IncQueryTotal(transport Transport)

	// IncQueryError increments the failed statement counter.
	IncQueryError(transport Transport)

	// ObserveQueryDuration records a statement duration in seconds,
	// measured from submit to terminal status.
	ObserveQueryDuration(transport Transport, seconds float64)

	// ----------------------
	// Pages and Rows
	// ----------------------

	// IncPageTotal increments the fetched page counter.
	IncPageTotal(transport Transport)

	// AddRowTotal adds the number of rows delivered to the caller.
	AddRowTotal(transport Transport, rows int)

	// ----------------------
	// Failures
	// ----------------------

	// IncRetryTotal increments the page retry counter.
	IncRetryTotal(transport Transport)

	// IncDecodeError increments the row decode error counter.
	IncDecodeError(transport Transport)

	// IncCancelTotal increments the statement cancellation counter.
	IncCancelTotal(transport Transport)
}
