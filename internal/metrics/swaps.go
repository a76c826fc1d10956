package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Swaps records swap workflow activity.
type Swaps struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	points      prometheus.Counter
}

// NewSwaps registers the swap metrics on the provided registerer. A nil
// registerer yields a recorder that drops everything.
func NewSwaps(reg prometheus.Registerer) *Swaps {
	if reg == nil {
		return &Swaps{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewear",
		Name:      "swap_transitions_total",
		Help:      "Swap state transitions by operation and swap type.",
	}, []string{"operation", "swap_type"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewear",
		Name:      "swap_failures_total",
		Help:      "Refused or failed swap operations by error code.",
	}, []string{"operation", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rewear",
		Name:      "swap_operation_duration_seconds",
		Help:      "Duration of swap operations including the database transaction.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	points := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rewear",
		Name:      "swap_points_transferred_total",
		Help:      "Points moved between users by accepted redemptions.",
	})
	reg.MustRegister(transitions, failures, duration, points)
	return &Swaps{
		transitions: transitions,
		failures:    failures,
		duration:    duration,
		points:      points,
	}
}

// IncTransition counts a successful operation.
func (s *Swaps) IncTransition(operation, swapType string) {
	if s == nil || s.transitions == nil {
		return
	}
	s.transitions.WithLabelValues(normalizeLabel(operation), normalizeLabel(swapType)).Inc()
}

// IncFailure counts a refused or failed operation.
func (s *Swaps) IncFailure(operation, code string) {
	if s == nil || s.failures == nil {
		return
	}
	s.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// ObserveDuration records how long an operation took.
func (s *Swaps) ObserveDuration(operation string, d time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

// AddPointsTransferred adds to the redeemed points total.
func (s *Swaps) AddPointsTransferred(n int) {
	if s == nil || s.points == nil || n <= 0 {
		return
	}
	s.points.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
