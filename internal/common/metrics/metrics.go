// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	MatchCandidatesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_candidates_scored_total",
			Help: "Total number of candidates run through the compatibility scorer",
		},
		[]string{"target_type"},
	)

	MatchCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_snapshot_cache_hits_total",
			Help: "Snapshot cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	MatchCompatibilityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_compatibility_score",
			Help:    "Distribution of final compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	SnapshotsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_snapshots_swept_total",
			Help: "Total number of expired match snapshots deleted by the sweeper",
		},
	)
)
