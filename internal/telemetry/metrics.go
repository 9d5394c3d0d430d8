// Package telemetry provides application-level observability for Logfold.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<LF_TELEMETRY_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is NOT served by the Gin router so the
// scrape path stays off the public ingress and bypasses rate limiting.
//
// HTTP metrics use c.FullPath() (route template such as /v1/logs/:id) rather
// than the raw URL to prevent unbounded label cardinality from user-supplied
// path segments such as channel paths or log ids.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%): sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Ingestion metrics, recorded by the log ingest path.
//
// LogsIngestedTotal counts successfully persisted logs per organization.
// LogsRejectedTotal counts writes refused by the quota gate; an alert on
// increase(logs_rejected_total[1h]) > 0 catches organizations hitting their
// plan limit.
var (
	LogsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logs_ingested_total",
			Help: "Total number of logs accepted and persisted, by organization.",
		},
		[]string{"organization"},
	)

	LogsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logs_rejected_total",
			Help: "Total number of log writes rejected by the usage quota gate, by organization.",
		},
		[]string{"organization"},
	)
)

// Rule evaluation metrics, recorded by the rule runner background job.
//
// Example PromQL queries:
//   - Trigger rate:   rate(rules_triggered_total[1h])
//   - Failure alert:  increase(rule_notification_failures_total[30m]) > 3
var (
	RulesEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rules_evaluated_total",
			Help: "Total number of alert rule evaluations performed.",
		},
	)

	RulesTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rules_triggered_total",
			Help: "Total number of alert rule evaluations that crossed their threshold.",
		},
	)

	RuleNotificationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rule_notification_failures_total",
			Help: "Total number of rule notifications that failed to dispatch.",
		},
	)
)

// Retention and usage job metrics.
//
// LogsPurgedTotal is incremented by the retention purge job with the number of
// hard-deleted rows per run. UsageCyclesResetTotal counts billing-cycle
// rollovers; UsageWarningEmailsSentTotal counts 90%-of-quota warning emails.
var (
	LogsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logs_purged_total",
			Help: "Total number of logs hard-deleted by the retention purge job.",
		},
	)

	UsageCyclesResetTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_cycles_reset_total",
			Help: "Total number of organization billing cycles rolled over by the reset job.",
		},
	)

	UsageWarningEmailsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_warning_emails_sent_total",
			Help: "Total number of usage warning emails successfully sent.",
		},
	)
)

// Stats cache metrics, recorded by the incremental window cache in the stats
// service. A low hit ratio on long windows indicates the cache Redis instance
// is unavailable or being evicted.
var (
	StatsCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_hits_total",
			Help: "Total number of stats window lookups served from the incremental cache.",
		},
	)

	StatsCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_misses_total",
			Help: "Total number of stats window lookups that required a full database fetch.",
		},
	)
)

// DBOpenConnections tracks the number of open connections currently held by
// the sql.DB pool. It is sampled every 30 seconds by StartDBStatsCollector
// rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable (db.Ping fails), which happens automatically when the
// application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
