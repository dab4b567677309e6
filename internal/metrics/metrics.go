package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Turn relay
	turnsClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_turns_claimed_total",
			Help: "Total number of turn events claimed by the relay.",
		},
	)
	turnsPosted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_turns_posted_total",
			Help: "Total number of turn events posted to chat.",
		},
	)
	turnsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_turns_failed_total",
			Help: "Total number of turn events marked failed, by cause.",
		},
		[]string{"cause"},
	)
	turnsCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_turns_cache_hits_total",
			Help: "Turn events marked posted from the delivery cache instead of being re-sent.",
		},
	)
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_poll_duration_seconds",
			Help:    "Time spent in one relay poll cycle (seconds).",
			Buckets: prometheus.DefBuckets,
		},
	)
	deliveryLag = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_delivery_lag_seconds",
			Help:    "Lag between turn event creation and delivery (seconds).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// Commands
	commandsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_commands_enqueued_total",
			Help: "Total number of commands queued for remote clients.",
		},
	)
	commandsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_commands_rejected_total",
			Help: "Total number of rejected commands, by reason.",
		},
		[]string{"reason"},
	)
	notifyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notify_errors_total",
			Help: "Total number of failed command notifications, by transport.",
		},
		[]string{"transport"},
	)

	// Retention
	rowsPurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rows_purged_total",
			Help: "Total number of terminal rows removed by retention, by queue.",
		},
		[]string{"queue"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,

			turnsClaimed,
			turnsPosted,
			turnsFailed,
			turnsCacheHits,
			pollDuration,
			deliveryLag,

			commandsEnqueued,
			commandsRejected,
			notifyErrors,

			rowsPurged,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP ---
func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, code).Inc()
	httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// --- Turn relay ---
func AddTurnsClaimed(n int)               { turnsClaimed.Add(float64(max0(n))) }
func IncTurnPosted()                      { turnsPosted.Inc() }
func IncTurnFailed(cause string)          { turnsFailed.WithLabelValues(cause).Inc() }
func IncTurnCacheHit()                    { turnsCacheHits.Inc() }
func ObservePollDuration(d time.Duration) { pollDuration.Observe(d.Seconds()) }
func ObserveDeliveryLag(d time.Duration) {
	if d < 0 {
		d = 0
	}
	deliveryLag.Observe(d.Seconds())
}

// --- Commands ---
func IncCommandEnqueued()                { commandsEnqueued.Inc() }
func IncCommandRejected(reason string)   { commandsRejected.WithLabelValues(reason).Inc() }
func IncNotifyError(transport string)    { notifyErrors.WithLabelValues(transport).Inc() }
func AddRowsPurged(queue string, n int64) {
	if n <= 0 {
		return
	}
	rowsPurged.WithLabelValues(queue).Add(float64(n))
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
