package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the registration pipeline counters.
type Metrics struct {
	ChainCompletions  *prometheus.CounterVec
	FlowDecisions     *prometheus.CounterVec
	KYCInitiations    *prometheus.CounterVec
	DBReconnectsTotal prometheus.CounterFunc
}

// New registers the pipeline metrics on the default registry. reconnects is
// sampled live from the connection manager.
func New(reconnects func() float64) *Metrics {
	return &Metrics{
		ChainCompletions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regserver_mojang_chain_total",
			Help: "Account-ownership chain completions by result",
		}, []string{"result"}),
		FlowDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regserver_flow_decisions_total",
			Help: "Registration flow decisions after a successful chain",
		}, []string{"outcome"}),
		KYCInitiations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regserver_kyc_initiations_total",
			Help: "KYC verification initiation attempts by result",
		}, []string{"result"}),
		DBReconnectsTotal: promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "regserver_db_reconnects_total",
			Help: "Database reconnections performed by the connection manager",
		}, reconnects),
	}
}

func (m *Metrics) ChainSucceeded() { m.ChainCompletions.WithLabelValues("success").Inc() }

func (m *Metrics) ChainFailed() { m.ChainCompletions.WithLabelValues("failure").Inc() }

func (m *Metrics) FlowDecided(outcome string) { m.FlowDecisions.WithLabelValues(outcome).Inc() }

func (m *Metrics) KYCInitiated(result string) { m.KYCInitiations.WithLabelValues(result).Inc() }
