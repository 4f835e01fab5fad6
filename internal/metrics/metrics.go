package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the approval and checkout workflows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Affiliation submissions and gate decisions
	AffiliationsSubmitted prometheus.Counter
	GateDecisions         *prometheus.CounterVec

	// Cart mutations by action
	CartActions *prometheus.CounterVec

	// Checkout attempts by outcome, gateway latency and applied callbacks
	Checkouts        *prometheus.CounterVec
	GatewayLatency   prometheus.Histogram
	GatewayCallbacks *prometheus.CounterVec
}

// New registers all workflow metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AffiliationsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "fed_affiliations_submitted_total",
			Help: "Total affiliation requests submitted",
		}),
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fed_affiliation_gate_decisions_total",
			Help: "Affiliation gate decisions by gate and decision",
		}, []string{"gate", "decision"}),
		CartActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fed_cart_actions_total",
			Help: "Cart mutations by action",
		}, []string{"action"}), // action: "add", "remove", "update", "cancel"
		Checkouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fed_checkouts_total",
			Help: "Checkout attempts by outcome",
		}, []string{"outcome"}), // outcome: "reserved", "rejected", "conflict", "gateway_failed"
		GatewayLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fed_gateway_charge_duration_seconds",
			Help:    "Duration of payment gateway charge creation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GatewayCallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fed_gateway_callbacks_total",
			Help: "Gateway callbacks by outcome and result",
		}, []string{"outcome", "result"}), // result: "applied", "duplicate", "rejected"
	}
}

// IncSubmitted records an affiliation submission.
func (m *Metrics) IncSubmitted() {
	if m != nil {
		m.AffiliationsSubmitted.Inc()
	}
}

// IncGateDecision records a gate decision.
func (m *Metrics) IncGateDecision(gate, decision string) {
	if m != nil {
		m.GateDecisions.WithLabelValues(gate, decision).Inc()
	}
}

// IncCartAction records a cart mutation.
func (m *Metrics) IncCartAction(action string) {
	if m != nil {
		m.CartActions.WithLabelValues(action).Inc()
	}
}

// IncCheckout records a checkout outcome.
func (m *Metrics) IncCheckout(outcome string) {
	if m != nil {
		m.Checkouts.WithLabelValues(outcome).Inc()
	}
}

// ObserveGatewayLatency records how long charge creation took.
func (m *Metrics) ObserveGatewayLatency(d time.Duration) {
	if m != nil {
		m.GatewayLatency.Observe(d.Seconds())
	}
}

// IncCallback records a processed gateway callback.
func (m *Metrics) IncCallback(outcome, result string) {
	if m != nil {
		m.GatewayCallbacks.WithLabelValues(outcome, result).Inc()
	}
}
