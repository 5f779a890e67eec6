// Package metrics exposes the server's Prometheus collectors. They are
// served from the debug listener next to pprof.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/evftp/evftp/constants"
)

var (
	// ClientsTotal counts accepted control connections over the process
	// lifetime.
	ClientsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: constants.Name,
		Name:      "clients_total",
		Help:      "Accepted control connections.",
	})

	// OpenConnections is the number of live control connections.
	OpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: constants.Name,
		Name:      "open_connections",
		Help:      "Live control connections.",
	})

	// TransfersTotal counts finished data transfers by result.
	TransfersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: constants.Name,
		Name:      "transfers_total",
		Help:      "Finished data transfers.",
	}, []string{"result"})

	// TransferredBytes counts payload bytes moved across data connections.
	TransferredBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: constants.Name,
		Name:      "transferred_bytes_total",
		Help:      "Payload bytes moved across data connections.",
	})
)

func init() {
	prometheus.MustRegister(ClientsTotal, OpenConnections, TransfersTotal, TransferredBytes)
}
