package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencharge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gencharge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencharge_transactions_total",
			Help: "Total number of ledger transactions by service type and final status",
		},
		[]string{"service_type", "status"},
	)

	WalletTopUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gencharge_wallet_topups_total",
			Help: "Total number of successful wallet top-ups",
		},
	)

	WalletConflictRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gencharge_wallet_conflict_retries_total",
			Help: "Total number of optimistic-lock retries on wallet updates",
		},
	)

	IdempotencyDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencharge_idempotency_decisions_total",
			Help: "Idempotency guard decisions by outcome",
		},
		[]string{"decision"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencharge_settlements_total",
			Help: "Settlement gate outcomes",
		},
		[]string{"method", "status"},
	)

	AutopayRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencharge_autopay_runs_total",
			Help: "Autopay entries processed by outcome",
		},
		[]string{"tag", "outcome"},
	)

	AutopayBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gencharge_autopay_batch_duration_seconds",
			Help:    "Duration of an autopay due batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActivePlansExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gencharge_active_plans_expired_total",
			Help: "Active plans flipped to expired by the sweeper",
		},
	)

	ReferralRewardsClaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gencharge_referral_rewards_claimed_total",
			Help: "Total number of claimed referral rewards",
		},
	)

	NotificationsQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencharge_notifications_queued_total",
			Help: "Notification events queued by type and status",
		},
		[]string{"type", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gencharge_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTransaction(serviceType, status string) {
	TransactionsTotal.WithLabelValues(serviceType, status).Inc()
}

func RecordWalletTopUp() {
	WalletTopUpsTotal.Inc()
}

func RecordWalletConflictRetry() {
	WalletConflictRetriesTotal.Inc()
}

func RecordIdempotencyDecision(decision string) {
	IdempotencyDecisionsTotal.WithLabelValues(decision).Inc()
}

func RecordSettlement(method, status string) {
	SettlementsTotal.WithLabelValues(method, status).Inc()
}

func RecordAutopayRun(tag, outcome string) {
	AutopayRunsTotal.WithLabelValues(tag, outcome).Inc()
}

func ObserveAutopayBatch(seconds float64) {
	AutopayBatchDuration.Observe(seconds)
}

func RecordActivePlansExpired(count int64) {
	ActivePlansExpiredTotal.Add(float64(count))
}

func RecordReferralRewardClaimed() {
	ReferralRewardsClaimedTotal.Inc()
}

func RecordNotification(eventType, status string) {
	NotificationsQueuedTotal.WithLabelValues(eventType, status).Inc()
}
