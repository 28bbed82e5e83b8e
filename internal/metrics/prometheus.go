package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the storage node startup checker
type Metrics struct {
	// Volume check metrics
	VolumeChecksTotal        prometheus.CounterVec
	VolumeCheckTimeoutsTotal prometheus.Counter
	ThrottledChecksTotal     prometheus.Counter
	CheckRunsTotal           prometheus.CounterVec
	CheckRunDuration         prometheus.Histogram
	LastRunGoodVolumes       prometheus.Gauge
	LastRunFailedVolumes     prometheus.Gauge

	// System metrics
	DiskUsageBytes     prometheus.Gauge
	DiskAvailableBytes prometheus.Gauge
	DiskUsagePercent   prometheus.Gauge
	MemoryUsageBytes   prometheus.Gauge
	GoroutinesTotal    prometheus.Gauge
}

// NewMetrics creates and registers all metrics for the given node
func NewMetrics(nodeID string) *Metrics {
	labels := prometheus.Labels{"node_id": nodeID}

	return &Metrics{
		VolumeChecksTotal: *promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "halodb",
			Subsystem:   "volcheck",
			Name:        "volume_checks_total",
			Help:        "Total number of volume check classifications by result",
			ConstLabels: labels,
		}, []string{"result"}),
		VolumeCheckTimeoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "halodb",
			Subsystem:   "volcheck",
			Name:        "volume_check_timeouts_total",
			Help:        "Total number of volume checks abandoned after the wait budget ran out",
			ConstLabels: labels,
		}),
		ThrottledChecksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "halodb",
			Subsystem:   "volcheck",
			Name:        "throttled_checks_total",
			Help:        "Total number of volume checks answered from a recent completion",
			ConstLabels: labels,
		}),
		CheckRunsTotal: *promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "halodb",
			Subsystem:   "volcheck",
			Name:        "check_runs_total",
			Help:        "Total number of startup check runs by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		CheckRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "halodb",
			Subsystem:   "volcheck",
			Name:        "check_run_duration_seconds",
			Help:        "Histogram of startup check run durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		LastRunGoodVolumes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "halodb",
			Subsystem:   "volcheck",
			Name:        "last_run_good_volumes",
			Help:        "Number of usable volumes in the most recent check run",
			ConstLabels: labels,
		}),
		LastRunFailedVolumes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "halodb",
			Subsystem:   "volcheck",
			Name:        "last_run_failed_volumes",
			Help:        "Number of failed volumes in the most recent check run",
			ConstLabels: labels,
		}),

		DiskUsageBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "halodb",
			Subsystem:   "system",
			Name:        "disk_usage_bytes",
			Help:        "Current disk usage across usable volumes in bytes",
			ConstLabels: labels,
		}),
		DiskAvailableBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "halodb",
			Subsystem:   "system",
			Name:        "disk_available_bytes",
			Help:        "Available disk space across usable volumes in bytes",
			ConstLabels: labels,
		}),
		DiskUsagePercent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "halodb",
			Subsystem:   "system",
			Name:        "disk_usage_percent",
			Help:        "Disk usage percentage across usable volumes",
			ConstLabels: labels,
		}),
		MemoryUsageBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "halodb",
			Subsystem:   "system",
			Name:        "memory_usage_bytes",
			Help:        "Current memory usage in bytes",
			ConstLabels: labels,
		}),
		GoroutinesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "halodb",
			Subsystem:   "system",
			Name:        "goroutines_total",
			Help:        "Current number of goroutines",
			ConstLabels: labels,
		}),
	}
}

// ObserveClassification records one classified volume
func (m *Metrics) ObserveClassification(result string) {
	m.VolumeChecksTotal.WithLabelValues(result).Inc()
}

// ObserveCheckRun records the outcome of one startup check run
func (m *Metrics) ObserveCheckRun(outcome string, good, failed int, duration time.Duration) {
	m.CheckRunsTotal.WithLabelValues(outcome).Inc()
	m.CheckRunDuration.Observe(duration.Seconds())
	m.LastRunGoodVolumes.Set(float64(good))
	m.LastRunFailedVolumes.Set(float64(failed))
}

// UpdateSystemStats updates system-level gauges
func (m *Metrics) UpdateSystemStats(diskUsed, diskAvailable, memoryBytes int64, goroutines int) {
	m.DiskUsageBytes.Set(float64(diskUsed))
	m.DiskAvailableBytes.Set(float64(diskAvailable))
	if diskUsed+diskAvailable > 0 {
		m.DiskUsagePercent.Set(float64(diskUsed) / float64(diskUsed+diskAvailable) * 100.0)
	}
	m.MemoryUsageBytes.Set(float64(memoryBytes))
	m.GoroutinesTotal.Set(float64(goroutines))
}
