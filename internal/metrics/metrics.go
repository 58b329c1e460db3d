// Package metrics provides monitoring and metrics collection for recondor.
// A lightweight in-process registry backs counters, gauges, and histograms
// used by the recon modules; Prometheus collectors in this package expose
// the same signals to scrapers when the API server is running.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents the type of metric.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Labels represents key-value pairs for metric labels.
type Labels map[string]string

// Metric represents a single metric with its metadata.
type Metric struct {
	Name      string
	Type      MetricType
	Value     float64
	Labels    Labels
	Timestamp time.Time
}

// Registry holds all metrics and provides collection functionality.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]*Metric
	enabled bool
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]*Metric),
		enabled: true,
	}
}

// SetEnabled enables or disables metrics collection.
func (r *Registry) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// IsEnabled returns whether metrics collection is enabled.
func (r *Registry) IsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// Counter increments a counter metric.
func (r *Registry) Counter(name string, labels Labels) {
	if !r.IsEnabled() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.makeKey(name, labels)
	if metric, exists := r.metrics[key]; exists {
		metric.Value++
		metric.Timestamp = time.Now()
	} else {
		r.metrics[key] = &Metric{
			Name:      name,
			Type:      TypeCounter,
			Value:     1,
			Labels:    labels,
			Timestamp: time.Now(),
		}
	}
}

// Gauge sets a gauge metric value.
func (r *Registry) Gauge(name string, value float64, labels Labels) {
	if !r.IsEnabled() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.makeKey(name, labels)
	r.metrics[key] = &Metric{
		Name:      name,
		Type:      TypeGauge,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

// Histogram records a value in a histogram metric.
func (r *Registry) Histogram(name string, value float64, labels Labels) {
	if !r.IsEnabled() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.makeKey(name, labels)
	if metric, exists := r.metrics[key]; exists {
		// Simple histogram implementation - just track last value
		metric.Value = value
		metric.Timestamp = time.Now()
	} else {
		r.metrics[key] = &Metric{
			Name:      name,
			Type:      TypeHistogram,
			Value:     value,
			Labels:    labels,
			Timestamp: time.Now(),
		}
	}
}

// GetMetrics returns a snapshot of all current metrics.
func (r *Registry) GetMetrics() map[string]*Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Metric)
	for key, metric := range r.metrics {
		result[key] = &Metric{
			Name:      metric.Name,
			Type:      metric.Type,
			Value:     metric.Value,
			Labels:    copyLabels(metric.Labels),
			Timestamp: metric.Timestamp,
		}
	}
	return result
}

// Reset clears all metrics.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = make(map[string]*Metric)
}

// makeKey creates a unique key for a metric based on name and labels.
func (r *Registry) makeKey(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}

	key := name
	for k, v := range labels {
		key += ":" + k + "=" + v
	}
	return key
}

// copyLabels creates a copy of labels map.
func copyLabels(labels Labels) Labels {
	if labels == nil {
		return nil
	}
	result := make(Labels)
	for k, v := range labels {
		result[k] = v
	}
	return result
}

// Global registry instance.
var defaultRegistry = NewRegistry()

// SetDefault sets the default metrics registry.
func SetDefault(registry *Registry) {
	defaultRegistry = registry
}

// Default returns the default metrics registry.
func Default() *Registry {
	return defaultRegistry
}

// SetEnabled enables or disables metrics collection on the default registry.
func SetEnabled(enabled bool) {
	defaultRegistry.SetEnabled(enabled)
}

// Counter increments a counter metric on the default registry.
func Counter(name string, labels Labels) {
	defaultRegistry.Counter(name, labels)
}

// Gauge sets a gauge metric on the default registry.
func Gauge(name string, value float64, labels Labels) {
	defaultRegistry.Gauge(name, value, labels)
}

// Histogram records a histogram value on the default registry.
func Histogram(name string, value float64, labels Labels) {
	defaultRegistry.Histogram(name, value, labels)
}

// GetMetrics returns all metrics from the default registry.
func GetMetrics() map[string]*Metric {
	return defaultRegistry.GetMetrics()
}

// Reset clears all metrics from the default registry.
func Reset() {
	defaultRegistry.Reset()
}

// Timer provides a simple way to measure execution time.
type Timer struct {
	start  time.Time
	name   string
	labels Labels
}

// NewTimer creates a new timer for measuring execution time.
func NewTimer(name string, labels Labels) *Timer {
	return &Timer{
		start:  time.Now(),
		name:   name,
		labels: labels,
	}
}

// Stop stops the timer, records the duration as a histogram, and returns
// the elapsed time. Scan-duration timers also feed the Prometheus scan
// histogram keyed by their scan_type label.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	Histogram(t.name, duration.Seconds(), t.labels)
	if t.name == MetricScanDuration {
		if scanType, ok := t.labels[LabelScanType]; ok {
			GetGlobalMetrics().RecordScanDuration(scanType, duration)
		}
	}
	return duration
}

// Predefined metric names for common operations.
const (
	// Port scan metrics.
	MetricScanDuration = "scan_duration_seconds"
	MetricScanTotal    = "scan_total"
	MetricScanErrors   = "scan_errors_total"
	MetricPortsProbed  = "ports_probed_total"

	MetricActiveScans  = "active_scans"

	// DNS enumeration metrics.
	MetricDNSLookups  = "dns_lookups_total"
	MetricDNSRecords  = "dns_records_total"
	MetricDNSDuration = "dns_duration_seconds"

	// Banner grabbing metrics.
	MetricBannersGrabbed = "banners_grabbed_total"
	MetricBannerDuration = "banner_duration_seconds"
)

// Common label keys.
const (
	LabelScanType  = "scan_type"
	LabelTarget    = "target"
	LabelStatus    = "status"
	LabelState     = "state"
	LabelError     = "error"
	LabelComponent = "component"
	LabelRType     = "rtype"
	LabelService   = "service"
)

// The helpers below are the recording surface for the recon modules. Each
// one feeds both the in-process registry and the Prometheus collectors, so
// a single call site keeps /metrics and the status snapshot in step.

// RecordScanDuration records the duration of a scan operation.
func RecordScanDuration(scanType, target string, duration time.Duration) {
	Histogram(MetricScanDuration, duration.Seconds(), Labels{
		LabelScanType: scanType,
		LabelTarget:   target,
	})
	GetGlobalMetrics().RecordScanDuration(scanType, duration)
}

// IncrementScanTotal increments the total scan counter.
func IncrementScanTotal(scanType, status string) {
	Counter(MetricScanTotal, Labels{
		LabelScanType: scanType,
		LabelStatus:   status,
	})
	GetGlobalMetrics().IncrementScansTotal(scanType, status)
}

// IncrementScanErrors counts fatal scan failures by error type.
func IncrementScanErrors(scanType, errorType string) {
	Counter(MetricScanErrors, Labels{
		LabelScanType: scanType,
		LabelError:    errorType,
	})
	GetGlobalMetrics().IncrementScanErrors(scanType, errorType)
}

// IncrementPortsProbed counts probed ports by classified state.
func IncrementPortsProbed(scanType, state string, count int) {
	for i := 0; i < count; i++ {
		Counter(MetricPortsProbed, Labels{
			LabelScanType: scanType,
			LabelState:    state,
		})
	}
	GetGlobalMetrics().IncrementPortsProbed(scanType, state, count)
}

// Active scan tracking. The gauge carries the instantaneous count; the
// atomic holds the authoritative value across concurrent scans.
var activeScans atomic.Int64

// IncrementActiveScans marks a scan as started.
func IncrementActiveScans() {
	n := activeScans.Add(1)
	Gauge(MetricActiveScans, float64(n), nil)
	GetGlobalMetrics().SetActiveScans(int(n))
}

// DecrementActiveScans marks a scan as finished.
func DecrementActiveScans() {
	n := activeScans.Add(-1)
	Gauge(MetricActiveScans, float64(n), nil)
	GetGlobalMetrics().SetActiveScans(int(n))
}

// IncrementDNSLookups counts DNS lookups by record type and status.
func IncrementDNSLookups(rtype, status string) {
	Counter(MetricDNSLookups, Labels{
		LabelRType:  rtype,
		LabelStatus: status,
	})
	GetGlobalMetrics().IncrementDNSLookups(rtype, status)
}

// IncrementDNSRecords counts discovered DNS records by type.
func IncrementDNSRecords(rtype string, count int) {
	for i := 0; i < count; i++ {
		Counter(MetricDNSRecords, Labels{
			LabelRType: rtype,
		})
	}
	GetGlobalMetrics().IncrementDNSRecords(rtype, count)
}

// RecordDNSDuration records the duration of one record-type lookup.
func RecordDNSDuration(rtype string, duration time.Duration) {
	Histogram(MetricDNSDuration, duration.Seconds(), Labels{
		LabelRType: rtype,
	})
	GetGlobalMetrics().RecordDNSDuration(rtype, duration)
}

// IncrementBannersGrabbed counts grabbed banners by identified service.
func IncrementBannersGrabbed(service string) {
	Counter(MetricBannersGrabbed, Labels{
		LabelService: service,
	})
	GetGlobalMetrics().IncrementBannersGrabbed(service)
}

// RecordBannerDuration records the duration of one banner grabbing run.
func RecordBannerDuration(target string, duration time.Duration) {
	Histogram(MetricBannerDuration, duration.Seconds(), Labels{
		LabelTarget: target,
	})
	GetGlobalMetrics().RecordBannerDuration(target, duration)
}
