package vm

import (
	"fmt"
	"io"
	"net/http"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/tandem/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "tandem"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// transportMetrics holds the pre-created series for one transport label.
type transportMetrics struct {
	queryTotal    *metrics.Counter
	queryErrors   *metrics.Counter
	queryDuration *metrics.Histogram
	pageTotal     *metrics.Counter
	rowTotal      *metrics.Counter
	retryTotal    *metrics.Counter
	decodeErrors  *metrics.Counter
	cancelTotal   *metrics.Counter
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// All metrics are pre-created at initialization time for optimal performance.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	rest   transportMetrics
	stream transportMetrics
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a VictoriaMetrics collector.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *Collector: A new collector
func New(opts ...Option) *Collector {
	c := &Collector{prefix: "tandem"}
	for _, opt := range opts {
		opt(c)
	}
	if c.set == nil {
		c.set = metrics.NewSet()
	}

	c.rest = c.newTransportMetrics(types.TransportREST)
	c.stream = c.newTransportMetrics(types.TransportStream)

	return c
}

func (c *Collector) newTransportMetrics(t types.Transport) transportMetrics {
	label := fmt.Sprintf(`transport=%q`, t.String())

	return transportMetrics{
		queryTotal:    c.set.NewCounter(fmt.Sprintf(`%s_query_total{%s}`, c.prefix, label)),
		queryErrors:   c.set.NewCounter(fmt.Sprintf(`%s_query_errors_total{%s}`, c.prefix, label)),
		queryDuration: c.set.NewHistogram(fmt.Sprintf(`%s_query_duration_seconds{%s}`, c.prefix, label)),
		pageTotal:     c.set.NewCounter(fmt.Sprintf(`%s_page_total{%s}`, c.prefix, label)),
		rowTotal:      c.set.NewCounter(fmt.Sprintf(`%s_row_total{%s}`, c.prefix, label)),
		retryTotal:    c.set.NewCounter(fmt.Sprintf(`%s_retry_total{%s}`, c.prefix, label)),
		decodeErrors:  c.set.NewCounter(fmt.Sprintf(`%s_decode_errors_total{%s}`, c.prefix, label)),
		cancelTotal:   c.set.NewCounter(fmt.Sprintf(`%s_cancel_total{%s}`, c.prefix, label)),
	}
}

func (c *Collector) forTransport(t types.Transport) *transportMetrics {
	if t == types.TransportStream {
		return &c.stream
	}

	return &c.rest
}

// IncQueryTotal increments the submitted statement counter.
func (c *Collector) IncQueryTotal(t types.Transport) {
	c.forTransport(t).queryTotal.Inc()
}

// IncQueryError increments the failed statement counter.
func (c *Collector) IncQueryError(t types.Transport) {
	c.forTransport(t).queryErrors.Inc()
}

// ObserveQueryDuration records a statement duration in seconds.
func (c *Collector) ObserveQueryDuration(t types.Transport, seconds float64) {
	c.forTransport(t).queryDuration.Update(seconds)
}

// IncPageTotal increments the fetched page counter.
func (c *Collector) IncPageTotal(t types.Transport) {
	c.forTransport(t).pageTotal.Inc()
}

// AddRowTotal adds the number of rows delivered to the caller.
func (c *Collector) AddRowTotal(t types.Transport, rows int) {
	if rows > 0 {
		c.forTransport(t).rowTotal.Add(rows)
	}
}

// IncRetryTotal increments the page retry counter.
func (c *Collector) IncRetryTotal(t types.Transport) {
	c.forTransport(t).retryTotal.Inc()
}

// IncDecodeError increments the row decode error counter.
func (c *Collector) IncDecodeError(t types.Transport) {
	c.forTransport(t).decodeErrors.Inc()
}

// IncCancelTotal increments the statement cancellation counter.
func (c *Collector) IncCancelTotal(t types.Transport) {
	c.forTransport(t).cancelTotal.Inc()
}

// Set returns the underlying metrics set.
//
// Returns:
//   - *metrics.Set: The metrics set used by this collector
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// Handler writes all collected metrics in Prometheus exposition format.
//
// Mount it on an HTTP mux:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}
