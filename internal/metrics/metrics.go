// Package metrics exposes prometheus instrumentation for the ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors the ledger and HTTP layer report into.
type Metrics struct {
	TransfersTotal       *prometheus.CounterVec
	AccountsCreatedTotal prometheus.Counter
	TransferDuration     prometheus.Histogram
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in the server, a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transfers_total",
			Help:      "Transfer attempts by outcome.",
		}, []string{"outcome"}),
		AccountsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "accounts_created_total",
			Help:      "Accounts successfully opened.",
		}),
		TransferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "transfer_duration_seconds",
			Help:      "Latency of transfer operations, including lock wait.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.TransfersTotal, m.AccountsCreatedTotal, m.TransferDuration)
	return m
}
