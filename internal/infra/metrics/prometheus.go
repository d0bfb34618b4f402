package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_interpolation_jobs_processed_total",
		Help: "Total number of interpolation jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_interpolation_stage_duration_seconds",
		Help:    "Duration of each interpolation pipeline stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	FramesSynthesizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_interpolation_frames_synthesized_total",
		Help: "Total number of synthesized frames, by strategy",
	}, []string{"strategy"})

	StrategyFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_interpolation_strategy_fallback_total",
		Help: "Runs that fell back to the naive strategy because the requested one was unavailable",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_interpolation_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_interpolation_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
