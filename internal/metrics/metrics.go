// Package metrics exposes Prometheus metrics for fetches, statistics builds and frontier runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all frontier metrics
type Registry struct {
	registry *prometheus.Registry

	// Frontier run metrics
	RunDuration      prometheus.Histogram
	RunsTotal        *prometheus.CounterVec
	TrialsTotal      prometheus.Counter
	FrontierPoints   prometheus.Gauge
	AcceptablePoints prometheus.Gauge
	TangencySharpe   prometheus.Gauge
	ActiveRuns       prometheus.Gauge

	// Data metrics
	FetchesTotal      *prometheus.CounterVec
	StatisticsBuilds  *prometheus.CounterVec
	StatisticsPeriods prometheus.Gauge
}

// NewRegistry creates a registry with all frontier metrics plus Go runtime collectors
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frontier_run_duration_seconds",
				Help:    "Duration of frontier runs in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_runs_total",
				Help: "Total number of frontier runs by result",
			},
			[]string{"result"},
		),

		TrialsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_trials_total",
				Help: "Total number of Monte Carlo trials evaluated",
			},
		),

		FrontierPoints: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_envelope_points",
				Help: "Number of portfolios on the upper envelope of the latest run",
			},
		),

		AcceptablePoints: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_acceptable_points",
				Help: "Number of envelope portfolios that passed the acceptability filter in the latest run",
			},
		),

		TangencySharpe: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_tangency_sharpe",
				Help: "Sharpe ratio of the tangency portfolio of the latest run",
			},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_active_runs",
				Help: "Number of frontier runs in progress",
			},
		),

		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_price_fetches_total",
				Help: "Total number of price fetches by symbol and result",
			},
			[]string{"symbol", "result"},
		),

		StatisticsBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_statistics_builds_total",
				Help: "Total number of statistics requests by source (cache or computed)",
			},
			[]string{"source"},
		),

		StatisticsPeriods: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_statistics_periods",
				Help: "Number of return periods behind the latest statistics",
			},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RunDuration,
		r.RunsTotal,
		r.TrialsTotal,
		r.FrontierPoints,
		r.AcceptablePoints,
		r.TangencySharpe,
		r.ActiveRuns,
		r.FetchesTotal,
		r.StatisticsBuilds,
		r.StatisticsPeriods,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RunStarted marks a frontier run as active and returns a func recording its outcome
func (r *Registry) RunStarted() func(err error) {
	start := time.Now()
	r.ActiveRuns.Inc()
	return func(err error) {
		r.ActiveRuns.Dec()
		if err != nil {
			r.RunsTotal.WithLabelValues("error").Inc()
			return
		}
		r.RunsTotal.WithLabelValues("success").Inc()
		r.RunDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordRun records the shape of a completed run
func (r *Registry) RecordRun(trials, frontierPoints, acceptablePoints int, tangencySharpe float64) {
	r.TrialsTotal.Add(float64(trials))
	r.FrontierPoints.Set(float64(frontierPoints))
	r.AcceptablePoints.Set(float64(acceptablePoints))
	r.TangencySharpe.Set(tangencySharpe)
}

// RecordFetch records the outcome of a price fetch
func (r *Registry) RecordFetch(symbol string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.FetchesTotal.WithLabelValues(symbol, result).Inc()
}

// RecordStatistics records a statistics request served from source ("cache" or "computed")
func (r *Registry) RecordStatistics(source string, periods int) {
	r.StatisticsBuilds.WithLabelValues(source).Inc()
	r.StatisticsPeriods.Set(float64(periods))
}
