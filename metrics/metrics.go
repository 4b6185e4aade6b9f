// Package metrics provides Prometheus metrics for the SnapShare server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Presence metrics
	devicesRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshare_devices_registered",
			Help: "Number of devices currently held by the registry",
		},
	)

	devicesReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshare_devices_reaped_total",
			Help: "Total devices evicted by the presence reaper",
		},
	)

	// Stream metrics
	streamsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapshare_streams_active",
			Help: "Number of open event streams",
		},
		[]string{"transport"},
	)

	eventsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshare_events_delivered_total",
			Help: "Total events queued onto subscriptions",
		},
		[]string{"type"},
	)

	eventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshare_events_dropped_total",
			Help: "Total events dropped because a subscription queue was full",
		},
		[]string{"type"},
	)

	// Transfer metrics
	uploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshare_uploaded_bytes_total",
			Help: "Total bytes written to the shared directory",
		},
	)

	uploadedFilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshare_uploaded_files_total",
			Help: "Total files written to the shared directory",
		},
	)

	downloadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshare_downloaded_bytes_total",
			Help: "Total bytes served from the shared directory",
		},
	)

	multipartPartsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshare_multipart_parts_skipped_total",
			Help: "Total multipart parts skipped as malformed",
		},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshare_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func SetDevicesRegistered(count int) {
	devicesRegistered.Set(float64(count))
}

func RecordDevicesReaped(count int) {
	devicesReapedTotal.Add(float64(count))
}

// StreamOpened and StreamClosed track open streams per transport (sse, ws).
func StreamOpened(transport string) {
	streamsActive.WithLabelValues(transport).Inc()
}

func StreamClosed(transport string) {
	streamsActive.WithLabelValues(transport).Dec()
}

// RecordEventFanout records the outcome of one publish.
func RecordEventFanout(eventType string, delivered, dropped int) {
	if delivered > 0 {
		eventsDeliveredTotal.WithLabelValues(eventType).Add(float64(delivered))
	}
	if dropped > 0 {
		eventsDroppedTotal.WithLabelValues(eventType).Add(float64(dropped))
	}
}

func RecordUpload(bytes int64) {
	uploadedFilesTotal.Inc()
	uploadedBytesTotal.Add(float64(bytes))
}

func RecordDownload(bytes int64) {
	downloadedBytesTotal.Add(float64(bytes))
}

func RecordSkippedParts(count int) {
	multipartPartsSkippedTotal.Add(float64(count))
}

// RecordRateLimitHit records a rate limit rejection.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}
