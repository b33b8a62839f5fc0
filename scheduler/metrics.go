package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchdog_jobs_total",
		Help: "Completed jobs by result code",
	}, []string{"result"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "watchdog_job_duration_seconds",
		Help:    "Wall time of supervised targets",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watchdog_jobs_in_flight",
		Help: "Jobs currently under supervision",
	})
)

func observeJobStart() {
	jobsInFlight.Inc()
}

func observeJobDone(result string, timeMS int64) {
	jobsInFlight.Dec()
	jobsTotal.WithLabelValues(result).Inc()
	jobDuration.Observe(float64(timeMS) / 1000.0)
}
