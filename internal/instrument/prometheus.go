// Package instrument exports circuit construction metrics to Prometheus.
package instrument

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	linksEstablished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "torcircuit_links_established_total",
			Help: "Number of links whose handshake completed",
		},
	)
	linksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torcircuit_links_failed_total",
			Help: "Number of links that could not be opened",
		},
		[]string{"kind"},
	)
	circuitsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "torcircuit_circuits_created_total",
			Help: "Number of circuits whose first hop was created",
		},
	)
	circuitsExtended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "torcircuit_circuit_extends_total",
			Help: "Number of successful circuit extensions",
		},
	)
	circuitFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torcircuit_circuit_failures_total",
			Help: "Number of failed create or extend operations",
		},
		[]string{"op", "kind"},
	)
	circuitsDestroyed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torcircuit_circuits_destroyed_total",
			Help: "Number of circuits torn down locally",
		},
		[]string{"reason"},
	)
	hopLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "torcircuit_hop_build_seconds",
			Help:    "Time to create or extend one hop",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"op"},
	)
	activeCircuits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "torcircuit_active_circuits",
			Help: "Circuits tracked by the manager",
		},
	)

	registerOnce sync.Once
)

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linksEstablished)
		prometheus.MustRegister(linksFailed)
		prometheus.MustRegister(circuitsCreated)
		prometheus.MustRegister(circuitsExtended)
		prometheus.MustRegister(circuitFailures)
		prometheus.MustRegister(circuitsDestroyed)
		prometheus.MustRegister(hopLatency)
		prometheus.MustRegister(activeCircuits)
	})
}

// Init registers the metrics and, if addr is not empty, serves them at
// /metrics on addr.
func Init(addr string) *http.Server {
	register()
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.ListenAndServe()
	return srv
}

func LinkEstablished() {
	linksEstablished.Inc()
}

func LinkFailed(kind string) {
	linksFailed.With(prometheus.Labels{"kind": kind}).Inc()
}

func CircuitCreated(d time.Duration) {
	circuitsCreated.Inc()
	hopLatency.With(prometheus.Labels{"op": "create"}).Observe(d.Seconds())
}

func CircuitExtended(d time.Duration) {
	circuitsExtended.Inc()
	hopLatency.With(prometheus.Labels{"op": "extend"}).Observe(d.Seconds())
}

func CircuitFailed(op, kind string) {
	circuitFailures.With(prometheus.Labels{"op": op, "kind": kind}).Inc()
}

func CircuitDestroyed(reason string) {
	circuitsDestroyed.With(prometheus.Labels{"reason": reason}).Inc()
}

func ActiveCircuits(n int) {
	activeCircuits.Set(float64(n))
}
