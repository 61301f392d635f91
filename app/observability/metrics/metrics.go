package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	DiscoveryTurnsTotal   metric.Int64Counter
	TurnDurationSeconds   metric.Float64Histogram
	FollowUpResolvedTotal metric.Int64Counter
	SearchCacheHitsTotal  metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("poi-discovery")
		var err error
		m := &AppMetrics{}

		m.DiscoveryTurnsTotal, err = meter.Int64Counter(
			"discovery_turns_total",
			metric.WithDescription("Total conversational discovery turns completed"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create discovery_turns_total: %v", err)
		}

		m.TurnDurationSeconds, err = meter.Float64Histogram(
			"discovery_turn_duration_seconds",
			metric.WithDescription("Duration of discovery turns in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create discovery_turn_duration_seconds: %v", err)
		}

		m.FollowUpResolvedTotal, err = meter.Int64Counter(
			"followup_resolved_total",
			metric.WithDescription("Total turns resolved as follow-ups without a fresh search"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create followup_resolved_total: %v", err)
		}

		m.SearchCacheHitsTotal, err = meter.Int64Counter(
			"search_cache_hits_total",
			metric.WithDescription("Total search pipeline cache hits"),
			metric.WithUnit("{hit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_cache_hits_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics.InitAppMetrics must be called before metrics.Get")
	}
	return appMetrics
}
