package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "setlist_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "setlist_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Playlist service metrics
var (
	PlaylistWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_playlist_writes_total",
			Help: "Total number of playlist create/update/delete operations",
		},
		[]string{"operation", "status"},
	)

	ThumbnailBytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "setlist_thumbnail_bytes_stored_total",
			Help: "Total bytes of normalised thumbnails written to disk",
		},
	)

	PlaylistCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_playlist_cache_lookups_total",
			Help: "Playlist cache lookups by result",
		},
		[]string{"result"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_events_published_total",
			Help: "Playlist events published to redis",
		},
		[]string{"type", "status"},
	)
)

// Form client metrics
var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_form_submissions_total",
			Help: "Playlist form submissions by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "setlist_form_submission_duration_seconds",
			Help:    "Time spent in the network step of a form submission",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
