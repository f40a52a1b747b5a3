package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts served requests by route template and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automateeasy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by route template.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automateeasy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthEventsTotal counts auth workflow outcomes, e.g. {login, not_verified}.
	AuthEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automateeasy_auth_events_total",
			Help: "Auth workflow outcomes by operation and result",
		},
		[]string{"operation", "result"},
	)

	// UpstreamRequestsTotal counts Make.com API calls by operation and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automateeasy_upstream_requests_total",
			Help: "Make.com API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// UpstreamRequestDuration observes Make.com API latency.
	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automateeasy_upstream_request_duration_seconds",
			Help:    "Make.com API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RateLimitRejectedTotal counts requests rejected by the auth rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automateeasy_ratelimit_rejected_total",
			Help: "Requests rejected by the auth endpoint rate limiter",
		},
	)

	// MailQueueDepth reports jobs waiting in the mail queue.
	MailQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "automateeasy_mail_queue_depth",
			Help: "Mail jobs waiting to be delivered",
		},
	)

	// MailJobsTotal counts mail jobs by result (succeeded, failed, dropped, panic).
	MailJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automateeasy_mail_jobs_total",
			Help: "Mail jobs by result",
		},
		[]string{"result"},
	)

	// ExpiredResetTokensCleared counts reset tokens removed by the janitor.
	ExpiredResetTokensCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automateeasy_expired_reset_tokens_cleared_total",
			Help: "Expired password reset tokens cleared by the janitor",
		},
	)
)

var once sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthEventsTotal,
			UpstreamRequestsTotal,
			UpstreamRequestDuration,
			RateLimitRejectedTotal,
			MailQueueDepth,
			MailJobsTotal,
			ExpiredResetTokensCleared,
		)
	})
}
