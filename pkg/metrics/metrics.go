package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	objectStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sdv_core",
			Subsystem: "registry",
			Name:      "object_status",
			Help:      "Lifecycle status of registered objects (one-hot by status label).",
		},
		[]string{"class", "object", "status"},
	)

	objectReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sdv_core",
			Subsystem: "registry",
			Name:      "object_ready",
			Help:      "Current readiness of registered objects (1 running, 0 otherwise).",
		},
		[]string{"class", "object"},
	)

	signalsRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdv_core",
			Subsystem: "dispatch",
			Name:      "signals_registered_total",
			Help:      "Total number of signal registrations, grouped by direction.",
		},
		[]string{"direction"},
	)

	signalWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdv_core",
			Subsystem: "dispatch",
			Name:      "signal_writes_total",
			Help:      "Total number of signal writes, grouped by signal name.",
		},
		[]string{"signal"},
	)

	signalReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdv_core",
			Subsystem: "dispatch",
			Name:      "signal_reads_total",
			Help:      "Total number of signal reads, grouped by signal name.",
		},
		[]string{"signal"},
	)

	triggerFires = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdv_core",
			Subsystem: "dispatch",
			Name:      "trigger_fires_total",
			Help:      "Total number of trigger executions, grouped by firing reason.",
		},
		[]string{"reason"},
	)

	schedulerTickLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sdv_core",
			Subsystem: "dispatch",
			Name:      "scheduler_tick_latency_seconds",
			Help:      "Delay between a scheduled trigger's due time and its actual execution.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~205ms
		},
	)
)

func init() {
	Registry.MustRegister(
		objectStatus,
		objectReady,
		signalsRegistered,
		signalWrites,
		signalReads,
		triggerFires,
		schedulerTickLatency,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
