package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	JourneysPolled       *prometheus.CounterVec
	PollRuns             prometheus.Counter
	PollDuration         prometheus.Histogram
	UpstreamRequests     *prometheus.CounterVec
	UpstreamRetries      prometheus.Counter
	UpstreamDuration     *prometheus.HistogramVec
	NotificationsSent    *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	ErrorsCount          *prometheus.CounterVec
	TransitionsPublished *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics registered on the default registry
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics on reg. Tests pass a fresh registry so
// repeated construction does not panic on duplicate registration.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JourneysPolled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journeys_polled_total",
			Help:      "The total number of journeys checked by the poller, by outcome",
		}, []string{"outcome"}),
		PollRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_runs_total",
			Help:      "The total number of poller batch runs",
		}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time taken by one poller batch run",
			Buckets:   prometheus.DefBuckets,
		}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Flight status API requests by endpoint variant and response code",
		}, []string{"variant", "code"}),
		UpstreamRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "The total number of retried flight status API requests",
		}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of flight status API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"variant"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Push notifications by provider and outcome (sent, failed, skipped)",
		}, []string{"provider", "outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received",
		}, []string{"endpoint", "status", "method"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
		TransitionsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_published_total",
			Help:      "Journey transitions handed to the notification trigger, by sink and outcome",
		}, []string{"sink", "outcome"}),
	}
}
