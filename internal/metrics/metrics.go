// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private to vnsched so tests and embedders never collide with
// the global default registry.
var Registry = prometheus.NewRegistry()

var (
	// ParseTotal counts /api/parse and CLI parses by result:
	// complete, incomplete or error.
	ParseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vnsched",
		Name:      "parse_total",
		Help:      "Sentences parsed, by result",
	}, []string{"result"})

	ParseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vnsched",
		Name:      "parse_duration_seconds",
		Help:      "Time spent turning one sentence into an event",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// RemindersTotal counts reminder deliveries by result: sent or failed.
	RemindersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vnsched",
		Name:      "reminders_total",
		Help:      "Reminder notifications, by result",
	}, []string{"result"})

	ICSSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vnsched",
		Name:      "ics_sync_total",
		Help:      "Calendar subscription refreshes, by source and result",
	}, []string{"source", "result"})

	ICSEvents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vnsched",
		Name:      "ics_events",
		Help:      "Events imported from each subscription at the last refresh",
	}, []string{"source"})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vnsched",
		Name:      "ws_clients",
		Help:      "Connected websocket clients",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ParseTotal,
		ParseDuration,
		RemindersTotal,
		ICSSyncTotal,
		ICSEvents,
		WSClients,
	)
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
