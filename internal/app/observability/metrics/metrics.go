package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal        metric.Int64Counter
	HTTPRequestDuration      metric.Float64Histogram
	IntakeTurnsTotal         metric.Int64Counter
	GenerationsTotal         metric.Int64Counter
	RegenerationsTotal       metric.Int64Counter
	RegenerationsSkipped     metric.Int64Counter
	GatewayCallDuration      metric.Float64Histogram
	GatewayErrorsTotal       metric.Int64Counter
	PendingMessagesGauge     metric.Int64Gauge
	DBQueryErrorsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments only once,
// using the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("travesia")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.IntakeTurnsTotal, err = meter.Int64Counter(
			"intake_turns_total",
			metric.WithDescription("User messages processed by the intake state machine"),
			metric.WithUnit("{message}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create intake_turns_total: %v", err)
		}

		m.GenerationsTotal, err = meter.Int64Counter(
			"itinerary_generations_total",
			metric.WithDescription("Itinerary generation calls by outcome"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_generations_total: %v", err)
		}

		m.RegenerationsTotal, err = meter.Int64Counter(
			"itinerary_regenerations_total",
			metric.WithDescription("Speculative itinerary regeneration attempts by outcome"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_regenerations_total: %v", err)
		}

		m.RegenerationsSkipped, err = meter.Int64Counter(
			"itinerary_regenerations_skipped_total",
			metric.WithDescription("Regenerations skipped due to an incomplete trip snapshot"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_regenerations_skipped_total: %v", err)
		}

		m.GatewayCallDuration, err = meter.Float64Histogram(
			"gateway_call_duration_seconds",
			metric.WithDescription("Latency of LLM gateway calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_call_duration_seconds: %v", err)
		}

		m.GatewayErrorsTotal, err = meter.Int64Counter(
			"gateway_errors_total",
			metric.WithDescription("LLM gateway call failures by kind"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_errors_total: %v", err)
		}

		m.PendingMessagesGauge, err = meter.Int64Gauge(
			"pending_gated_messages",
			metric.WithDescription("Messages held behind the registration gate"),
			metric.WithUnit("{message}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create pending_gated_messages: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Database query failures"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global metrics instance, initializing it if needed.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
