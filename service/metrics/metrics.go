package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service metrics on its own prometheus registry
type Registry struct {
	registry *prometheus.Registry

	StageDuration    *prometheus.HistogramVec
	AnalysisOutcomes *prometheus.CounterVec
	RefreshFactors   *prometheus.CounterVec
	RefreshRows      prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labfolio_analysis_stage_duration_seconds",
				Help:    "Duration of each factor model analysis stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"stage"},
		),

		AnalysisOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labfolio_analysis_total",
				Help: "Factor model analyses by outcome (ok or the failing stage)",
			},
			[]string{"outcome"},
		),

		RefreshFactors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labfolio_refresh_factors_total",
				Help: "Factors processed by the return refresh job by outcome",
			},
			[]string{"outcome"},
		),

		RefreshRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "labfolio_refresh_rows_total",
				Help: "Factor return rows written by the refresh job",
			},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labfolio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	r.registry.MustRegister(
		r.StageDuration,
		r.AnalysisOutcomes,
		r.RefreshFactors,
		r.RefreshRows,
		r.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

func (r *Registry) ObserveStage(stage string, elapsed time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveOutcome(outcome string) {
	r.AnalysisOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveRefresh(outcome string, rows int64) {
	r.RefreshFactors.WithLabelValues(outcome).Inc()
	r.RefreshRows.Add(float64(rows))
}

func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
