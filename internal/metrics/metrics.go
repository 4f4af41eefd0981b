package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// All metrics are low-cardinality: labels carry device serials and event
// type ids, never channel ids or entity ids.

var (
	// AlertsReceived counts notification callbacks that parsed cleanly.
	AlertsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikbridge_alerts_received_total",
			Help: "Inbound event notifications accepted, by event type",
		},
		[]string{"event"},
	)

	// AlertsDropped counts callbacks that could not be used.
	AlertsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikbridge_alerts_dropped_total",
			Help: "Inbound event notifications dropped, by reason",
		},
		[]string{"reason"},
	)

	// AlertsPublished counts alerts republished to a sink.
	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikbridge_alerts_published_total",
			Help: "Alerts republished downstream, by sink",
		},
		[]string{"sink"},
	)

	// PublishFailures counts permanently failed publishes.
	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikbridge_publish_failures_total",
			Help: "Alerts that exhausted publish retries, by sink",
		},
		[]string{"sink"},
	)

	// PollFailures counts coordinator passes that hit device errors.
	PollFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikbridge_poll_failures_total",
			Help: "Coordinator refresh passes with at least one failed read",
		},
		[]string{"device"},
	)

	// DevicesManaged is the number of devices currently set up.
	DevicesManaged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hikbridge_devices_managed",
			Help: "Devices with an active lifecycle handle",
		},
	)

	// ListenerRegistrations tracks the notification listener refcount.
	ListenerRegistrations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hikbridge_listener_registrations",
			Help: "Devices registered on the shared notification route",
		},
	)
)

func RecordAlert(eventID string) {
	AlertsReceived.WithLabelValues(eventID).Inc()
}

func RecordDrop(reason string) {
	AlertsDropped.WithLabelValues(reason).Inc()
}

func RecordPublish(sink string) {
	AlertsPublished.WithLabelValues(sink).Inc()
}

func RecordPublishFailure(sink string) {
	PublishFailures.WithLabelValues(sink).Inc()
}
