package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FilterOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_filter_operations_total",
			Help: "Total number of filter operations applied to dashboard views (count)",
		},
		[]string{"operation", "result"},
	)

	TrafficLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_traffic_loads_total",
			Help: "Total number of traffic loads, by outcome (count)",
		},
		[]string{"status"},
	)

	TrafficLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_traffic_load_duration_ms",
			Help:    "Duration of traffic aggregation queries in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	PreferenceEntriesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "view_preference_entries_dropped_total",
			Help: "Total number of persisted view preference entries dropped on read (count)",
		},
	)

	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts (count)",
		},
		[]string{"method", "status"},
	)

	AccountOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_operations_total",
			Help: "Total number of account operations (count)",
		},
		[]string{"operation", "status"},
	)

	MailJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_jobs_total",
			Help: "Total number of mail jobs, by template and outcome (count)",
		},
		[]string{"template", "status"},
	)

	MailSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_send_duration_ms",
			Help:    "Duration of mail delivery in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"template"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var (
	apiOnce     sync.Once
	mailerOnce  sync.Once
	brokerOnce  sync.Once
	breakerOnce sync.Once
)

func RegisterAPIMetrics() {
	apiOnce.Do(func() {
		prometheus.MustRegister(FilterOperationsTotal)
		prometheus.MustRegister(TrafficLoadsTotal)
		prometheus.MustRegister(TrafficLoadDuration)
		prometheus.MustRegister(PreferenceEntriesDroppedTotal)
		prometheus.MustRegister(AuthAttemptsTotal)
		prometheus.MustRegister(AccountOperationsTotal)
		prometheus.MustRegister(RateLimitRequestsTotal)
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func RegisterMailerMetrics() {
	mailerOnce.Do(func() {
		prometheus.MustRegister(MailJobsTotal)
		prometheus.MustRegister(MailSendDuration)
	})
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DLQMessagesTotal)
		prometheus.MustRegister(KafkaMessagesReadTotal)
		prometheus.MustRegister(KafkaMessagesWrittenTotal)
		prometheus.MustRegister(KafkaMessageSizeBytes)
		prometheus.MustRegister(KafkaConsumerLag)
		prometheus.MustRegister(KafkaWriteDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	breakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func IncFilterOperation(operation, result string) {
	FilterOperationsTotal.WithLabelValues(operation, result).Inc()
}

func ObserveTrafficLoad(duration time.Duration, status string) {
	TrafficLoadsTotal.WithLabelValues(status).Inc()
	TrafficLoadDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func AddPreferenceEntriesDropped(n int) {
	if n > 0 {
		PreferenceEntriesDroppedTotal.Add(float64(n))
	}
}

func IncAuthAttempt(method, status string) {
	AuthAttemptsTotal.WithLabelValues(method, status).Inc()
}

func IncAccountOperation(operation, status string) {
	AccountOperationsTotal.WithLabelValues(operation, status).Inc()
}

func ObserveMailSend(template, status string, duration time.Duration) {
	MailJobsTotal.WithLabelValues(template, status).Inc()
	MailSendDuration.WithLabelValues(template).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveDatabaseQuery(service, database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
