// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the keeper collectors. Create one per registry.
type Metrics struct {
	// Writes counts write requests by status ("ok", "rejected" or "error").
	Writes *prometheus.CounterVec
	// Recoveries counts recovery outcomes by outcome label.
	Recoveries *prometheus.CounterVec
	// Verifications counts verification verdicts by verdict label.
	Verifications *prometheus.CounterVec
	// BackupDeletions counts corrupt backups removed by the keeper.
	BackupDeletions prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. When reg is also a prometheus.Gatherer,
// Handler serves its contents.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sealkeeper_writes_total",
			Help: "Total record writes by status",
		}, []string{"status"}),
		Recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sealkeeper_recoveries_total",
			Help: "Total recovery assessments by outcome",
		}, []string{"outcome"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sealkeeper_verifications_total",
			Help: "Total secret verifications by verdict",
		}, []string{"verdict"}),
		BackupDeletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealkeeper_corrupt_backups_removed_total",
			Help: "Total backups deleted after failing validation",
		}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// NewNop returns collectors registered on a private registry, for callers that
// do not export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
