// Package metrics exposes prometheus collectors for the frame search.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "apperception"

var durationBuckets = []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800}

// Metrics groups the search collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Sessions   *prometheus.CounterVec
	Candidates prometheus.Counter
	BestCost   prometheus.Gauge
	Frames     prometheus.Counter
	Ground     prometheus.Histogram
	Solve      prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Solver sessions by terminal status",
		}, []string{"status"}),
		Candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Improving interpretations found",
		}),
		BestCost: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_cost",
			Help:      "Cost of the best interpretation found so far",
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames attempted",
		}),
		Ground: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ground_seconds",
			Help:      "Grounding duration per frame",
			Buckets:   durationBuckets,
		}),
		Solve: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_seconds",
			Help:      "Search duration per frame",
			Buckets:   durationBuckets,
		}),
	}
}

// FrameStarted counts a frame attempt.
func (m *Metrics) FrameStarted() {
	if m == nil {
		return
	}
	m.Frames.Inc()
}

// Grounded observes a grounding duration.
func (m *Metrics) Grounded(d time.Duration) {
	if m == nil {
		return
	}
	m.Ground.Observe(d.Seconds())
}

// Candidate counts an improving interpretation and tracks its cost.
func (m *Metrics) Candidate(cost int) {
	if m == nil {
		return
	}
	m.Candidates.Inc()
	m.BestCost.Set(float64(cost))
}

// SessionDone counts a finished session and observes its search time.
func (m *Metrics) SessionDone(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(status).Inc()
	m.Solve.Observe(d.Seconds())
}

// Handler serves the collectors of g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
