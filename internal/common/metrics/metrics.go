// Package metrics holds the Prometheus collectors exported on /metrics.
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
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
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

var (
	EnrichmentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_runs_total",
			Help: "Enrichment runs by tier and terminal outcome",
		},
		[]string{"tier", "outcome"},
	)

	EnrichmentCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_cost_usd_total",
			Help: "Accumulated model cost in USD",
		},
		[]string{"tier"},
	)

	EnrichmentTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_tokens_total",
			Help: "Model tokens by tier and direction",
		},
		[]string{"tier", "direction"},
	)

	EnrichmentToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_tool_calls_total",
			Help: "Tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	EnrichmentTurns = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_turns",
			Help:    "Model turns used per run",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 10, 12, 16},
		},
		[]string{"tier"},
	)

	EnrichmentActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enrichment_active_runs",
			Help: "Runs currently inside the tool-use loop",
		},
	)

	SweeperDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_sweeper_rows_total",
			Help: "Rows touched by the retention sweep",
		},
		[]string{"kind"},
	)
)
