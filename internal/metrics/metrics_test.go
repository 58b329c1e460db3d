package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("counter increments across calls", func(t *testing.T) {
		r := NewRegistry()
		r.Counter("requests", Labels{"method": "GET"})
		r.Counter("requests", Labels{"method": "GET"})
		r.Counter("requests", Labels{"method": "POST"})

		snapshot := r.GetMetrics()
		assert.Len(t, snapshot, 2)
		for _, m := range snapshot {
			if m.Labels["method"] == "GET" {
				assert.Equal(t, float64(2), m.Value)
			}
		}
	})

	t.Run("gauge overwrites", func(t *testing.T) {
		r := NewRegistry()
		r.Gauge("active", 3, nil)
		r.Gauge("active", 1, nil)

		snapshot := r.GetMetrics()
		require.Len(t, snapshot, 1)
		for _, m := range snapshot {
			assert.Equal(t, float64(1), m.Value)
			assert.Equal(t, TypeGauge, m.Type)
		}
	})

	t.Run("histogram keeps the latest observation", func(t *testing.T) {
		r := NewRegistry()
		r.Histogram("duration", 0.5, nil)
		r.Histogram("duration", 1.5, nil)

		for _, m := range r.GetMetrics() {
			assert.Equal(t, float64(1.5), m.Value)
		}
	})

	t.Run("disabled registry records nothing", func(t *testing.T) {
		r := NewRegistry()
		r.SetEnabled(false)
		r.Counter("requests", nil)
		assert.Empty(t, r.GetMetrics())
	})

	t.Run("reset clears all metrics", func(t *testing.T) {
		r := NewRegistry()
		r.Counter("requests", nil)
		r.Reset()
		assert.Empty(t, r.GetMetrics())
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		r := NewRegistry()
		r.Counter("requests", Labels{"method": "GET"})

		snapshot := r.GetMetrics()
		for _, m := range snapshot {
			m.Value = 99
			m.Labels["method"] = "DELETE"
		}
		for _, m := range r.GetMetrics() {
			assert.Equal(t, float64(1), m.Value)
			assert.Equal(t, "GET", m.Labels["method"])
		}
	})
}

// The package-level helpers must move both the in-process registry and the
// Prometheus collectors scraped at /metrics.
func TestHelpersFeedPrometheusCollectors(t *testing.T) {
	pm := GetGlobalMetrics()

	t.Run("scan total", func(t *testing.T) {
		c := pm.scansTotal.WithLabelValues("tcp_connect", "completed")
		before := testutil.ToFloat64(c)
		IncrementScanTotal("tcp_connect", "completed")
		assert.Equal(t, before+1, testutil.ToFloat64(c))
	})

	t.Run("scan errors", func(t *testing.T) {
		c := pm.scanErrors.WithLabelValues("tcp_connect", "resolution")
		before := testutil.ToFloat64(c)
		IncrementScanErrors("tcp_connect", "resolution")
		assert.Equal(t, before+1, testutil.ToFloat64(c))
	})

	t.Run("ports probed adds the whole count", func(t *testing.T) {
		c := pm.portsProbed.WithLabelValues("tcp_connect", "open")
		before := testutil.ToFloat64(c)
		IncrementPortsProbed("tcp_connect", "open", 7)
		assert.Equal(t, before+7, testutil.ToFloat64(c))
	})

	t.Run("active scans gauge tracks starts and finishes", func(t *testing.T) {
		base := testutil.ToFloat64(pm.activeScans)
		IncrementActiveScans()
		assert.Equal(t, base+1, testutil.ToFloat64(pm.activeScans))
		DecrementActiveScans()
		assert.Equal(t, base, testutil.ToFloat64(pm.activeScans))
	})

	t.Run("dns lookups and records", func(t *testing.T) {
		lookups := pm.dnsLookups.WithLabelValues("MX", "answered")
		records := pm.dnsRecords.WithLabelValues("MX")
		lookupsBefore := testutil.ToFloat64(lookups)
		recordsBefore := testutil.ToFloat64(records)

		IncrementDNSLookups("MX", "answered")
		IncrementDNSRecords("MX", 3)

		assert.Equal(t, lookupsBefore+1, testutil.ToFloat64(lookups))
		assert.Equal(t, recordsBefore+3, testutil.ToFloat64(records))
	})

	t.Run("banners counted by identified service", func(t *testing.T) {
		c := pm.bannersGrabbed.WithLabelValues("Nginx")
		before := testutil.ToFloat64(c)
		IncrementBannersGrabbed("Nginx")
		assert.Equal(t, before+1, testutil.ToFloat64(c))
	})

	t.Run("helpers still feed the in-process registry", func(t *testing.T) {
		Reset()
		IncrementScanTotal("tcp_connect", "completed")

		found := false
		for _, m := range GetMetrics() {
			if m.Name == MetricScanTotal {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func histogramSampleCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, o.(prometheus.Metric).Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestTimerBridgesScanDuration(t *testing.T) {
	pm := GetGlobalMetrics()
	h := pm.scanDuration.WithLabelValues("timer_bridge")
	before := histogramSampleCount(t, h)

	timer := NewTimer(MetricScanDuration, Labels{LabelScanType: "timer_bridge"})
	elapsed := timer.Stop()

	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	assert.Equal(t, before+1, histogramSampleCount(t, h))
}

func TestRecordScanDuration(t *testing.T) {
	pm := GetGlobalMetrics()
	h := pm.scanDuration.WithLabelValues("direct_record")
	before := histogramSampleCount(t, h)

	RecordScanDuration("direct_record", "example.com", 250*time.Millisecond)

	assert.Equal(t, before+1, histogramSampleCount(t, h))
}

func TestUpdateSystemMetrics(t *testing.T) {
	pm := GetGlobalMetrics()
	pm.UpdateSystemMetrics()

	assert.Positive(t, testutil.ToFloat64(pm.goroutines))
	assert.Positive(t, testutil.ToFloat64(pm.memoryUsage))
	assert.False(t, pm.GetLastUpdate().IsZero())
}
