package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var PostsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "boardjanitor_posts_scanned_total",
	Help: "Number of posts fetched from the store, by job",
}, []string{"job"})

var PostsMarkedSpam = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "boardjanitor_posts_marked_spam_total",
	Help: "Number of posts newly marked as spam, by reason",
}, []string{"reason"})

var SummariesUpdated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "boardjanitor_summaries_updated_total",
	Help: "Number of posts whose summaries were rewritten",
})

var DefaultedTimestamps = promauto.NewCounter(prometheus.CounterOpts{
	Name: "boardjanitor_defaulted_timestamps_total",
	Help: "Number of posts evaluated with a substituted creation time",
})

var JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "boardjanitor_job_failures_total",
	Help: "Number of job runs that returned an error",
}, []string{"job"})

var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "boardjanitor_job_duration_seconds",
	Help: "Wall-clock duration of job runs",
}, []string{"job"})
