package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipnotify_http_requests_total",
		Help: "HTTP requests served, by route and status code.",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shipnotify_http_request_duration_seconds",
		Help:    "Latency of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipnotify_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"scope"})

	AuthRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipnotify_auth_rejected_total",
		Help: "Requests rejected by authentication, by scheme.",
	}, []string{"scheme"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shipnotify_ws_connections",
		Help: "Currently open real-time connections on this gateway.",
	})

	FramesPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipnotify_frames_pushed_total",
		Help: "Frames written to client send queues, by event.",
	}, []string{"event"})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipnotify_frames_dropped_total",
		Help: "Frames dropped because a client send queue was full.",
	})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipnotify_deliveries_total",
		Help: "Delivery task outcomes.",
	}, []string{"result"})

	ShipmentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipnotify_shipment_events_total",
		Help: "Shipment status events processed, by source and result.",
	}, []string{"source", "result"})
)

// Observer adapts the package collectors to the domain's metric hooks.
type Observer struct{}

// Connected records a client joining or leaving the hub.
func (Observer) Connected(delta int) {
	WSConnections.Add(float64(delta))
}

// Pushed records a frame queued to a client.
func (Observer) Pushed(event string) {
	FramesPushed.WithLabelValues(event).Inc()
}

// Dropped records a frame lost to backpressure.
func (Observer) Dropped() {
	FramesDropped.Inc()
}

// Delivered records a delivery task outcome.
func (Observer) Delivered(result string) {
	Deliveries.WithLabelValues(result).Inc()
}

// ShipmentEvent records a processed shipment event.
func (Observer) ShipmentEvent(source, result string) {
	ShipmentEvents.WithLabelValues(source, result).Inc()
}
