package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	LoginAttemptsTotal        metric.Int64Counter
	LoginFailuresTotal        metric.Int64Counter
	RegisterRequestsTotal     metric.Int64Counter
	NotificationsCreatedTotal metric.Int64Counter
	DbQueryDurationSeconds    metric.Float64Histogram
	DbQueryErrorsTotal        metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("RnDHub")
		var err error
		m := &AppMetrics{}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Total number of login attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.LoginFailuresTotal, err = meter.Int64Counter(
			"login_failures_total",
			metric.WithDescription("Total number of failed login attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_failures_total: %v", err)
		}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.NotificationsCreatedTotal, err = meter.Int64Counter(
			"notifications_created_total",
			metric.WithDescription("Total number of notifications created"),
			metric.WithUnit("{notification}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create notifications_created_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
