package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection. All methods are safe
// to call on a nil *Collector, which records nothing.
type Collector struct {
	registry *prometheus.Registry

	// MinderGas API
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Refresh cycles and meter readings
	RefreshTotal       *prometheus.CounterVec
	MeterReadingsTotal *prometheus.CounterVec
	LastRefresh        *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of MinderGas API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "MinderGas API request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"endpoint"},
		),

		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Total number of statistics refresh cycles by result",
			},
			[]string{"result"}, // "ok", "partial", "failed"
		),

		MeterReadingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "meter_readings_total",
				Help:      "Total number of meter reading submissions by result",
			},
			[]string{"result"}, // "ok", "rejected", "skipped", "error"
		),

		LastRefresh: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_refresh_timestamp_seconds",
				Help:      "Unix time of the last completed refresh cycle",
			},
			[]string{"installation"},
		),
	}
}

// Registry returns the registry backing the collector
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveAPIRequest records one MinderGas API call. A status of 0 means
// the request failed before a response arrived.
func (c *Collector) ObserveAPIRequest(endpoint, method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.APIRequestsTotal.WithLabelValues(endpoint, method, label).Inc()
	c.APIRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordRefresh counts a refresh cycle and stamps its completion time
func (c *Collector) RecordRefresh(installation, result string, at time.Time) {
	if c == nil {
		return
	}
	c.RefreshTotal.WithLabelValues(result).Inc()
	c.LastRefresh.WithLabelValues(installation).Set(float64(at.Unix()))
}

// RecordMeterReading counts a meter reading submission attempt
func (c *Collector) RecordMeterReading(result string) {
	if c == nil {
		return
	}
	c.MeterReadingsTotal.WithLabelValues(result).Inc()
}

// ForgetInstallation drops per-installation series
func (c *Collector) ForgetInstallation(installation string) {
	if c == nil {
		return
	}
	c.LastRefresh.DeleteLabelValues(installation)
}
