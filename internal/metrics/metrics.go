// Package metrics exposes the server's operational counters as
// Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the server updates. Construct once per
// process with New and share the pointer across the I/O loop and
// scheduler.
type Metrics struct {
	LiveSessions  prometheus.Gauge
	TicksTotal    prometheus.Counter
	TickDuration  prometheus.Histogram
	StateDatagramsSent prometheus.Counter
	ProtocolErrors     *prometheus.CounterVec
	RoundsEnded        *prometheus.CounterVec
}

// New registers and returns the collector set on reg. Pass
// prometheus.DefaultRegisterer in production; tests should pass a fresh
// prometheus.NewRegistry() so repeated calls don't collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pongd",
			Name:      "live_sessions",
			Help:      "Number of sessions currently tracked by the registry.",
		}),
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pongd",
			Name:      "ticks_total",
			Help:      "Number of scheduler ticks run.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pongd",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of each scheduler tick epilogue.",
			Buckets:   prometheus.DefBuckets,
		}),
		StateDatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pongd",
			Name:      "state_datagrams_sent_total",
			Help:      "Number of object-state UDP datagrams sent.",
		}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pongd",
			Name:      "protocol_errors_total",
			Help:      "Protocol-level request failures, labeled by query name.",
		}, []string{"query"}),
		RoundsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pongd",
			Name:      "rounds_ended_total",
			Help:      "Rounds ended, labeled by result (timeout, win_a, win_b).",
		}, []string{"result"}),
	}
}

// Serve exposes the metrics endpoint on srv until it's closed; callers
// run it in its own goroutine and call srv.Close or srv.Shutdown to stop
// it. srv.Addr must be set by the caller.
func Serve(srv *http.Server) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv.Handler = mux
	return srv.ListenAndServe()
}
