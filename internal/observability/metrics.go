// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Projection metrics
	ProjectionTicks   prometheus.Counter
	ProjectionSubs    prometheus.Gauge
	PoolAPYPercent    *prometheus.GaugeVec
	PoolTotalStaked   *prometheus.GaugeVec
	SnapshotsReplaced prometheus.Counter

	// Refresh metrics
	RefreshRunsTotal      *prometheus.CounterVec
	RefreshDuration       prometheus.Histogram
	AccountNotifications  *prometheus.CounterVec
	LastSuccessfulRefresh prometheus.Gauge
	RPCCallLatency        *prometheus.HistogramVec

	// Action metrics
	ActionsTotal *prometheus.CounterVec

	// Leaderboard metrics
	ScoresSubmitted *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "npc_stake"
	}

	return &Metrics{
		ProjectionTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "ticks_total",
			Help:      "Total number of pending-reward projection ticks",
		}),
		ProjectionSubs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "subscribers",
			Help:      "Current number of projection subscribers",
		}),
		PoolAPYPercent: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "pool_apy_percent",
			Help:      "Pool APY percentage at the last snapshot",
		}, []string{"pool", "theoretical"}),
		PoolTotalStaked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "pool_total_staked",
			Help:      "Pool total staked in display units at the last snapshot",
		}, []string{"pool"}),
		SnapshotsReplaced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "snapshots_replaced_total",
			Help:      "Total number of pool/user snapshot pair replacements",
		}),

		RefreshRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of snapshot refresh runs by status",
		}, []string{"status"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Snapshot refresh duration",
			Buckets:   prometheus.DefBuckets,
		}),
		AccountNotifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "account_notifications_total",
			Help:      "Total number of account change notifications by account kind",
		}, []string{"kind"}),
		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "last_successful_timestamp",
			Help:      "Unix timestamp of last successful snapshot refresh",
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "Solana RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		ActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "total",
			Help:      "Total number of staking actions by name and status",
		}, []string{"action", "status"}),

		ScoresSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "scores_submitted_total",
			Help:      "Total number of submitted scores by game type",
		}, []string{"game_type"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordProjectionTick increments the projection tick counter.
func RecordProjectionTick() {
	DefaultMetrics.ProjectionTicks.Inc()
}

// SetProjectionSubscribers updates the subscriber gauge.
func SetProjectionSubscribers(n int) {
	DefaultMetrics.ProjectionSubs.Set(float64(n))
}

// RecordSnapshotReplaced increments the snapshot replacement counter.
func RecordSnapshotReplaced() {
	DefaultMetrics.SnapshotsReplaced.Inc()
}

// UpdatePoolGauges records the pool's APY and total stake.
func UpdatePoolGauges(pool string, apyPercent float64, theoretical bool, totalStakedUI float64) {
	th := "false"
	if theoretical {
		th = "true"
	}
	DefaultMetrics.PoolAPYPercent.WithLabelValues(pool, th).Set(apyPercent)
	DefaultMetrics.PoolTotalStaked.WithLabelValues(pool).Set(totalStakedUI)
}

// RecordRefresh records a refresh run.
func RecordRefresh(status string, durationSeconds float64, unixTs int64) {
	DefaultMetrics.RefreshRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RefreshDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulRefresh.Set(float64(unixTs))
	}
}

// RecordAccountNotification increments the account notification counter.
func RecordAccountNotification(kind string) {
	DefaultMetrics.AccountNotifications.WithLabelValues(kind).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordAction records a staking action outcome.
func RecordAction(action, status string) {
	DefaultMetrics.ActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordScoreSubmitted increments the submitted scores counter.
func RecordScoreSubmitted(gameType string) {
	DefaultMetrics.ScoresSubmitted.WithLabelValues(gameType).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
