package consensus

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ledgercert"

type metrics struct {
	votes         *prometheus.CounterVec
	rejected      prometheus.Counter
	certified     prometheus.Counter
	equivocations prometheus.Counter
	aggregators   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "aggregator",
			Name:      "votes_total",
			Help:      "Commit votes processed by outcome",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "aggregator",
			Name:      "votes_rejected_total",
			Help:      "Commit votes rejected during verification",
		}),
		certified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "aggregator",
			Name:      "certified_total",
			Help:      "Quorum certificates formed",
		}),
		equivocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "aggregator",
			Name:      "equivocations_total",
			Help:      "Equivocating commit votes detected",
		}),
		aggregators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "aggregator",
			Name:      "active",
			Help:      "Rounds currently tracked by the pool",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.votes, m.rejected, m.certified, m.equivocations, m.aggregators} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering aggregator metrics")
		}
	}

	return m, nil
}
