package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_http_requests_total",
		Help: "HTTP requests by method, path and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "canteen_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// Print pipeline
	PrintJobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_print_jobs_enqueued_total",
		Help: "Print jobs accepted into the durable queue",
	})
	PrintJobsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_print_jobs_delivered_total",
		Help: "Print jobs acknowledged by an agent",
	})
	PrintJobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_print_jobs_retried_total",
		Help: "Print delivery attempts that were retried",
	})
	PrintJobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_print_jobs_failed_total",
		Help: "Print jobs that reached the failed terminal state",
	})
	PrintQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "canteen_print_queue_depth",
		Help: "Queued print jobs per theater",
	}, []string{"theater"})
	PrintLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "canteen_print_last_success_timestamp_seconds",
		Help: "Unix time of the last delivered job per theater",
	}, []string{"theater"})

	// Ledger
	LedgerCASRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_ledger_cas_retries_total",
		Help: "Optimistic-lock retries on monthly stock documents",
	})
	LedgerCASConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_ledger_cas_conflicts_total",
		Help: "Ledger writes that exhausted retries and surfaced a conflict",
	})

	// Orders
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_orders_submitted_total",
		Help: "Orders accepted by channel",
	}, []string{"channel"})
	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_orders_rejected_total",
		Help: "Order submissions rejected by reason",
	}, []string{"reason"})

	// Agents
	AgentsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canteen_agents_running",
		Help: "Live agent subprocesses",
	})
	AgentRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_agent_restarts_total",
		Help: "Agent restarts by cause (stale, crash)",
	}, []string{"cause"})

	// Rate limiter
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_rate_limited_total",
		Help: "Requests rejected by the tiered limiter",
	}, []string{"tier"})
)
