// Package navmetrics exposes the run's progress counters as Prometheus
// metrics. Grounded on natesales-gpsd-exporter (a minimal prometheus
// client_golang exporter) and FengXuebin-gnssgo/app/plot's use of the same
// client library. The metrics side-car is
// deliberately outside the strictly sequential epoch pipeline of
// It only ever reads counters the orchestrator has already
// published after an epoch fully commits.
package navmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RunMetrics struct {
	Registry *prometheus.Registry

	EpochsProcessed prometheus.Counter
	KfUpdates       prometheus.Counter
	KfGateSkips     prometheus.Counter
	CovarianceTrace prometheus.Gauge
}

func New() *RunMetrics {
	reg := prometheus.NewRegistry()
	m := &RunMetrics{
		Registry: reg,
		EpochsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navfusion_epochs_processed_total",
			Help: "Number of epochs processed by the orchestrator.",
		}),
		KfUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navfusion_kf_updates_total",
			Help: "Number of epochs where the EKF update ran.",
		}),
		KfGateSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navfusion_kf_gate_skips_total",
			Help: "Number of epochs where the EKF update was gated off.",
		}),
		CovarianceTrace: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navfusion_covariance_trace",
			Help: "Trace of the EKF covariance matrix S after the last epoch.",
		}),
	}
	reg.MustRegister(m.EpochsProcessed, m.KfUpdates, m.KfGateSkips, m.CovarianceTrace)
	return m
}

// Serve starts an HTTP server exposing /metrics on addr in a new
// goroutine and returns immediately; the server runs detached for the
// process lifetime (no graceful shutdown is needed
// since the process exits when the epoch loop ends).
func (m *RunMetrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	go http.ListenAndServe(addr, mux) //nolint:errcheck
}
