// Package pprof serves the debug endpoints: the Go profiler and the
// Prometheus scrape target, on a loopback-only listener.
package pprof

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func StartPP() {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe("localhost:6060", nil)
		if err != nil {
			panic(err)
		}
	}()
}
