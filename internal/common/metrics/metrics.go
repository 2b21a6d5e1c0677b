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
)

// Reasoning pipeline metrics.
var (
	ReasoningRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasoning_requests_total",
			Help: "Chat requests answered, by reasoning path",
		},
		[]string{"reasoning_type"},
	)

	ReasoningClarifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reasoning_clarifications_total",
			Help: "Chat requests answered with a clarification prompt",
		},
	)

	ProviderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_fallbacks_total",
			Help: "Answer generations that fell back to the local generator",
		},
		[]string{"provider"},
	)

	RetrievalCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_cache_requests_total",
			Help: "Retrieval cache lookups by layer and result",
		},
		[]string{"layer", "result"},
	)

	AnswerCorrections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "answer_corrections_total",
			Help: "Answers rewritten by the self-corrector",
		},
	)

	BatchQuestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_questions_total",
			Help: "Questionnaire questions processed in batch runs, by outcome",
		},
		[]string{"status"},
	)
)
