package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PlanExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvchat_plan_extractions_total",
			Help: "Plan extraction outcomes by deciding strategy",
		},
		[]string{"strategy", "outcome"},
	)

	PlanRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvchat_plan_retries_total",
			Help: "Stricter re-asks issued after an unusable first response",
		},
		[]string{"reason"},
	)

	PlanCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvchat_plan_cache_lookups_total",
			Help: "Plan cache lookups by result",
		},
		[]string{"result"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csvchat_llm_request_duration_seconds",
			Help:    "Duration of upstream chat completion calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"status"},
	)

	QueriesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvchat_queries_total",
			Help: "SQL statements by result (ok, rejected, failed)",
		},
		[]string{"result"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "csvchat_query_duration_seconds",
			Help: "Duration of SQL execution against the uploaded table",
		},
		[]string{"dialect"},
	)

	SandboxRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvchat_sandbox_renders_total",
			Help: "Chart renders by outcome",
		},
		[]string{"outcome"},
	)

	IngestedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvchat_ingested_rows_total",
			Help: "Rows loaded from uploaded files",
		},
		[]string{"encoding"},
	)

	QuestionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "csvchat_questions_active",
			Help: "Questions currently being answered",
		},
	)
)
