package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccsd",
			Name:      "requests_total",
			Help:      "Total number of protocol requests by message type and result code.",
		},
		[]string{"type", "code"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ccsd",
			Name:      "request_duration_seconds",
			Help:      "Latency of protocol requests.",
			// 100us .. ~6.5s; blocking connects sit at the top.
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 17),
		},
		[]string{"type"},
	)

	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ccsd",
			Name:      "open_sessions",
			Help:      "Number of open descriptors.",
		},
	)

	OpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ccsd",
			Name:      "open_connections",
			Help:      "Number of live TCP connections.",
		},
	)

	Quorate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ccsd",
			Name:      "quorate",
			Help:      "1 when the last quorum evaluation found the cluster quorate.",
		},
	)

	ConfigVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ccsd",
			Name:      "config_version",
			Help:      "Version of the committed configuration document.",
		},
	)

	UpdatePhases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccsd",
			Name:      "update_phases_total",
			Help:      "Update protocol phases by outcome.",
		},
		[]string{"phase", "outcome"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccsd",
			Name:      "http_requests_total",
			Help:      "Total number of admin HTTP requests.",
		},
		[]string{"op", "status"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ccsd",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "ccsd",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		RequestsTotal, RequestDuration, OpenSessions, OpenConnections,
		Quorate, ConfigVersion, UpdatePhases, HTTPRequestsTotal, buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// ObserveRequest records one protocol request
func ObserveRequest(msgType string, code int32, took time.Duration) {
	RequestsTotal.WithLabelValues(msgType, strconv.Itoa(int(code))).Inc()
	RequestDuration.WithLabelValues(msgType).Observe(took.Seconds())
}

// ObservePhase records the outcome of one update phase
func ObservePhase(phase, outcome string) {
	UpdatePhases.WithLabelValues(phase, outcome).Inc()
}

// SetQuorate mirrors the latest quorum evaluation
func SetQuorate(quorate bool) {
	if quorate {
		Quorate.Set(1)
		return
	}
	Quorate.Set(0)
}

// ---- Middleware instrumentation ----

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		HTTPRequestsTotal.WithLabelValues(op, class).Inc()
	})
}
