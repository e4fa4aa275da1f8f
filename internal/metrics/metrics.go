// Package metrics exposes request, error, and subscription counters over a
// Prometheus registry, fed by eventbus events so the execution path never
// depends on the metrics pipeline.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	eventbus "github.com/shaipe/async-graphql/internal/eventbus"
	events "github.com/shaipe/async-graphql/internal/events"
)

// Setup installs the meter provider, attaches eventbus subscribers, and
// returns the handler serving the scrape endpoint.
func Setup(service string) (http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(service)

	sub, err := newSubscriber(meter)
	if err != nil {
		return nil, err
	}
	sub.register()

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

type subscriber struct {
	requests      metric.Int64Counter
	requestErrors metric.Int64Counter
	duration      metric.Float64Histogram
	fieldErrors   metric.Int64Counter
	subscribers   metric.Int64UpDownCounter
	subEvents     metric.Int64Counter
	brokerDrops   metric.Int64Counter
}

func newSubscriber(meter metric.Meter) (*subscriber, error) {
	s := &subscriber{}
	var err error
	if s.requests, err = meter.Int64Counter("graphql_requests_total",
		metric.WithDescription("Executed GraphQL operations")); err != nil {
		return nil, err
	}
	if s.requestErrors, err = meter.Int64Counter("graphql_request_errors_total",
		metric.WithDescription("Errors returned in operation responses")); err != nil {
		return nil, err
	}
	if s.duration, err = meter.Float64Histogram("graphql_request_duration_seconds",
		metric.WithDescription("Operation execution time")); err != nil {
		return nil, err
	}
	if s.fieldErrors, err = meter.Int64Counter("graphql_field_errors_total",
		metric.WithDescription("Field-level failures recorded during execution")); err != nil {
		return nil, err
	}
	if s.subscribers, err = meter.Int64UpDownCounter("graphql_active_subscriptions",
		metric.WithDescription("Currently active subscription streams")); err != nil {
		return nil, err
	}
	if s.subEvents, err = meter.Int64Counter("graphql_subscription_events_total",
		metric.WithDescription("Events delivered to subscribers")); err != nil {
		return nil, err
	}
	if s.brokerDrops, err = meter.Int64Counter("graphql_broker_dropped_events_total",
		metric.WithDescription("Events discarded because a subscriber queue overflowed")); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		s.requests.Add(ctx, 1)
		s.requestErrors.Add(ctx, int64(len(e.Errors)))
		s.duration.Record(ctx, e.Duration.Seconds())
	})
	eventbus.Subscribe(func(ctx context.Context, e events.FieldError) {
		s.fieldErrors.Add(ctx, 1)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionStart) {
		s.subscribers.Add(ctx, 1)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionFinish) {
		s.subscribers.Add(ctx, -1)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionEvent) {
		if !e.Filtered {
			s.subEvents.Add(ctx, 1)
		}
	})
	eventbus.Subscribe(func(ctx context.Context, e events.BrokerDrop) {
		s.brokerDrops.Add(ctx, 1)
	})
}
