package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	cyclesRun     prometheus.Counter
	cyclesSkipped prometheus.Counter
	probeFailures *prometheus.CounterVec
	storeErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &metrics{
		cyclesRun: f.NewCounter(prometheus.CounterOpts{
			Name: "webguard_cycles_total", Help: "Probe cycles completed",
		}),
		cyclesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "webguard_cycles_skipped_total", Help: "Due cycles skipped because the previous cycle was still running",
		}),
		probeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webguard_probe_failures_total", Help: "Failed probes by check type",
		}, []string{"check_type"}),
		storeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "webguard_store_errors_total", Help: "Store writes that exhausted their retry budget",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "webguard_cycle_duration_seconds", Help: "Probe cycle duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
