/*
Package metrics registers the Prometheus collectors exported by the server
and provides small helpers the core calls on the hot paths.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_connected_sessions",
		Help: "Number of currently connected websocket sessions.",
	})

	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_events_emitted_total",
		Help: "Events delivered to clients, by event name.",
	}, []string{"event"})

	messagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_messages_created_total",
		Help: "Messages accepted and persisted.",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_sends_rate_limited_total",
		Help: "Message sends rejected by the per-identity rate limiter.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SessionOpened increments the connected-sessions gauge.
func SessionOpened() { connectedSessions.Inc() }

// SessionClosed decrements the connected-sessions gauge.
func SessionClosed() { connectedSessions.Dec() }

// EventEmitted counts one delivered event by name.
func EventEmitted(event string) { eventsEmitted.WithLabelValues(event).Inc() }

// MessageCreated counts one persisted message.
func MessageCreated() { messagesCreated.Inc() }

// SendRateLimited counts one rate-limited send.
func SendRateLimited() { rateLimited.Inc() }
