// Package metrics holds the Prometheus collectors for the plan pipeline and
// the queue worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeWarning = "warning"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Pipeline groups the collectors. A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	plans      *prometheus.CounterVec
	messages   *prometheus.CounterVec
	completion prometheus.Histogram
}

// NewPipeline creates the collectors and registers them on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_plans_total",
			Help: "Plan pipeline runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_queue_messages_total",
			Help: "Queue messages handled by the worker, by outcome.",
		}, []string{"outcome"}),
		completion: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "travelplanner_completion_seconds",
			Help:    "Latency of completion calls.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120, 180},
		}),
	}
	reg.MustRegister(p.plans, p.messages, p.completion)
	return p
}

// ObservePlan counts one pipeline run.
func (p *Pipeline) ObservePlan(mode, outcome string) {
	if p == nil {
		return
	}
	p.plans.WithLabelValues(mode, outcome).Inc()
}

// ObserveMessage counts one queue message.
func (p *Pipeline) ObserveMessage(outcome string) {
	if p == nil {
		return
	}
	p.messages.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records the latency of one completion call.
func (p *Pipeline) ObserveCompletion(d time.Duration) {
	if p == nil {
		return
	}
	p.completion.Observe(d.Seconds())
}
