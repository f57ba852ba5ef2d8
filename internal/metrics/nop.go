// Package metrics provides internal metrics utilities for tandem.
package metrics

import "github.com/arloliu/tandem/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// IncQueryTotal discards the metric.
func (m *NopMetrics) IncQueryTotal(_ types.Transport) {}

// IncQueryError discards the metric.
func (m *NopMetrics) IncQueryError(_ types.Transport) {}

// ObserveQueryDuration discards the metric.
func (m *NopMetrics) ObserveQueryDuration(_ types.Transport, _ float64) {}

// IncPageTotal discards the metric.
func (m *NopMetrics) IncPageTotal(_ types.Transport) {}

// AddRowTotal discards the metric.
func (m *NopMetrics) AddRowTotal(_ types.Transport, _ int) {}

// IncRetryTotal discards the metric.
func (m *NopMetrics) IncRetryTotal(_ types.Transport) {}

// IncDecodeError discards the metric.
func (m *NopMetrics) IncDecodeError(_ types.Transport) {}

// IncCancelTotal discards the metric.
func (m *NopMetrics) IncCancelTotal(_ types.Transport) {}
