package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DispatchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_recipient_outcomes_total", Help: "Per-recipient dispatch outcomes"},
		[]string{"kind", "outcome"},
	)
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_pass_duration_seconds",
			Help:    "Time spent on one dispatch pass",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
	CampaignsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campaigns_sent_total", Help: "Campaigns transitioned to sent"},
	)
	AckResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ack_results_total", Help: "Acknowledgement results"},
		[]string{"result"},
	)

	WorkerEventsConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ack_worker_events_consumed_total", Help: "Ack events consumed"},
	)
	WorkerEventRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ack_worker_event_retries_total", Help: "Ack events requeued"},
	)
	WorkerEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ack_worker_events_dropped_total", Help: "Ack events dropped"},
	)
	WorkerProcessDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ack_worker_event_process_duration_seconds",
			Help:    "Time spent processing an ack event",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration,
		DispatchOutcomes, DispatchDuration, CampaignsSent, AckResults,
		WorkerEventsConsumed, WorkerEventRetries, WorkerEventsDropped, WorkerProcessDuration,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
