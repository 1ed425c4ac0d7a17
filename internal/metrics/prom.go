// README: Prometheus implementation of Recorder.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Prom records dispatch events as Prometheus counters.
type Prom struct {
	routing     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	enrichment  *prometheus.CounterVec
}

// NewProm registers the collectors on reg (default registerer when nil).
// Collectors that are already registered are reused.
func NewProm(reg prometheus.Registerer) (*Prom, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	routing, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "quickfix_routing_decisions_total",
		Help: "Routing and rerouting decisions by trigger and outcome",
	}, "trigger", "outcome")
	if err != nil {
		return nil, err
	}
	transitions, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "quickfix_transitions_total",
		Help: "Lifecycle actions by action and result",
	}, "action", "result")
	if err != nil {
		return nil, err
	}
	enrichment, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "quickfix_enrichment_calls_total",
		Help: "Vehicle enrichment calls by path and outcome",
	}, "path", "outcome")
	if err != nil {
		return nil, err
	}
	return &Prom{routing: routing, transitions: transitions, enrichment: enrichment}, nil
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (p *Prom) RoutingDecision(trigger, outcome string) {
	p.routing.WithLabelValues(trigger, outcome).Inc()
}

func (p *Prom) Transition(action, result string) {
	p.transitions.WithLabelValues(action, result).Inc()
}

func (p *Prom) EnrichmentCall(path, outcome string) {
	p.enrichment.WithLabelValues(path, outcome).Inc()
}
