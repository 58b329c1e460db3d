package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all recondor metrics
	namespace = "recondor"

	// Subsystems
	subsystemScan   = "scan"
	subsystemDNS    = "dns"
	subsystemBanner = "banner"
	subsystemAPI    = "api"
	subsystemSystem = "system"
)

// PrometheusMetrics holds all Prometheus metric collectors.
type PrometheusMetrics struct {
	// Port scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	scanErrors   *prometheus.CounterVec
	portsProbed  *prometheus.CounterVec
	activeScans  prometheus.Gauge

	// DNS metrics
	dnsLookups  *prometheus.CounterVec
	dnsDuration *prometheus.HistogramVec
	dnsRecords  *prometheus.CounterVec

	// Banner metrics
	bannersGrabbed *prometheus.CounterVec
	bannerDuration *prometheus.HistogramVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initDNSMetrics()
	pm.initBannerMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()
	pm.registerMetrics()

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of port scans performed by type and status",
		},
		[]string{"scan_type", "status"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of port scan operations in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"scan_type"},
	)

	pm.scanErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "errors_total",
			Help:      "Total number of fatal scan errors by type",
		},
		[]string{"scan_type", "error_type"},
	)

	pm.portsProbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "ports_total",
			Help:      "Total number of ports probed by classified state",
		},
		[]string{"scan_type", "state"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently active scans",
		},
	)
}

func (pm *PrometheusMetrics) initDNSMetrics() {
	pm.dnsLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDNS,
			Name:      "lookups_total",
			Help:      "Total number of DNS lookups by record type and status",
		},
		[]string{"rtype", "status"},
	)

	pm.dnsDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDNS,
			Name:      "duration_seconds",
			Help:      "Duration of DNS enumeration runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"rtype"},
	)

	pm.dnsRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDNS,
			Name:      "records_total",
			Help:      "Total number of DNS records discovered by type",
		},
		[]string{"rtype"},
	)
}

func (pm *PrometheusMetrics) initBannerMetrics() {
	pm.bannersGrabbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBanner,
			Name:      "grabbed_total",
			Help:      "Total number of banners grabbed by identified service",
		},
		[]string{"service"},
	)

	pm.bannerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemBanner,
			Name:      "duration_seconds",
			Help:      "Duration of banner grabbing runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
		[]string{"target"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.scansTotal)
	pm.registry.MustRegister(pm.scanDuration)
	pm.registry.MustRegister(pm.scanErrors)
	pm.registry.MustRegister(pm.portsProbed)
	pm.registry.MustRegister(pm.activeScans)

	pm.registry.MustRegister(pm.dnsLookups)
	pm.registry.MustRegister(pm.dnsDuration)
	pm.registry.MustRegister(pm.dnsRecords)

	pm.registry.MustRegister(pm.bannersGrabbed)
	pm.registry.MustRegister(pm.bannerDuration)

	pm.registry.MustRegister(pm.httpRequests)
	pm.registry.MustRegister(pm.httpDuration)

	pm.registry.MustRegister(pm.memoryUsage)
	pm.registry.MustRegister(pm.goroutines)
	pm.registry.MustRegister(pm.uptime)
}

// GetRegistry returns the Prometheus registry for the HTTP handler.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// IncrementScansTotal increments the total scan counter.
func (pm *PrometheusMetrics) IncrementScansTotal(scanType, status string) {
	pm.scansTotal.WithLabelValues(scanType, status).Inc()
}

// RecordScanDuration records a scan duration.
func (pm *PrometheusMetrics) RecordScanDuration(scanType string, duration time.Duration) {
	pm.scanDuration.WithLabelValues(scanType).Observe(duration.Seconds())
}

// IncrementScanErrors increments the fatal scan error counter.
func (pm *PrometheusMetrics) IncrementScanErrors(scanType, errorType string) {
	pm.scanErrors.WithLabelValues(scanType, errorType).Inc()
}

// IncrementPortsProbed adds to the probed-ports counter for a state.
func (pm *PrometheusMetrics) IncrementPortsProbed(scanType, state string, count int) {
	pm.portsProbed.WithLabelValues(scanType, state).Add(float64(count))
}

// SetActiveScans sets the number of active scans.
func (pm *PrometheusMetrics) SetActiveScans(count int) {
	pm.activeScans.Set(float64(count))
}

// IncrementDNSLookups increments the DNS lookup counter.
func (pm *PrometheusMetrics) IncrementDNSLookups(rtype, status string) {
	pm.dnsLookups.WithLabelValues(rtype, status).Inc()
}

// RecordDNSDuration records the duration of a DNS query.
func (pm *PrometheusMetrics) RecordDNSDuration(rtype string, duration time.Duration) {
	pm.dnsDuration.WithLabelValues(rtype).Observe(duration.Seconds())
}

// IncrementDNSRecords adds to the discovered-record counter.
func (pm *PrometheusMetrics) IncrementDNSRecords(rtype string, count int) {
	pm.dnsRecords.WithLabelValues(rtype).Add(float64(count))
}

// IncrementBannersGrabbed increments the grabbed-banner counter.
func (pm *PrometheusMetrics) IncrementBannersGrabbed(service string) {
	pm.bannersGrabbed.WithLabelValues(service).Inc()
}

// RecordBannerDuration records the duration of a banner grabbing run.
func (pm *PrometheusMetrics) RecordBannerDuration(target string, duration time.Duration) {
	pm.bannerDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// IncrementHTTPRequests increments the HTTP request counter.
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records an HTTP request duration.
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateSystemMetrics updates all system metrics with current values.
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())
	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime.
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time.
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates starts a goroutine that periodically updates system metrics.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

// Global instance for easy access.
var globalMetrics *PrometheusMetrics
var metricsOnce sync.Once

// GetGlobalMetrics returns the global Prometheus metrics instance.
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
