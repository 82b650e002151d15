package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AmmannChristian/go-oidcx/oauth2client"
)

// MeterName is the instrumentation scope of every instrument created by NewMetrics.
const MeterName = "github.com/AmmannChristian/go-oidcx"

// Metric names.
const (
	MetricTokenRefreshed = "oidcx.token.refreshed"
	MetricRefreshFailed  = "oidcx.token.refresh.failed"
	MetricRequestRetried = "oidcx.request.retried"
	MetricCacheLookups   = "oidcx.token.cache.lookups"
)

// Metrics records token lifecycle activity as OpenTelemetry counters.
type Metrics struct {
	refreshed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	lookups   metric.Int64Counter
}

// NewMetrics creates the counters on a meter from provider.
// A nil provider selects the global one.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(MeterName)

	m := &Metrics{}

	var err error
	m.refreshed, err = meter.Int64Counter(
		MetricTokenRefreshed,
		metric.WithDescription("Number of successful token refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricTokenRefreshed, err)
	}

	m.failed, err = meter.Int64Counter(
		MetricRefreshFailed,
		metric.WithDescription("Number of failed token refreshes"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricRefreshFailed, err)
	}

	m.retried, err = meter.Int64Counter(
		MetricRequestRetried,
		metric.WithDescription("Number of requests replayed with a refreshed token"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricRequestRetried, err)
	}

	m.lookups, err = meter.Int64Counter(
		MetricCacheLookups,
		metric.WithDescription("Number of token cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricCacheLookups, err)
	}

	return m, nil
}

// TokenRefreshed implements oauth2client.EventSink.
func (m *Metrics) TokenRefreshed(ctx context.Context, event oauth2client.Event) {
	m.refreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", string(event.Reason)),
		attribute.String("scope", event.Scope),
	))
}

// RefreshFailed implements oauth2client.FailureObserver.
func (m *Metrics) RefreshFailed(ctx context.Context, reason oauth2client.RefreshReason, err error) {
	m.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", string(reason)),
		attribute.String("error_type", ErrorType(err)),
	))
}

// RequestRetried implements oauth2client.RetryObserver.
func (m *Metrics) RequestRetried(ctx context.Context, status int) {
	m.retried.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("status", status),
	))
}

// CacheLookup implements oauth2client.CacheObserver.
func (m *Metrics) CacheLookup(ctx context.Context, tier string, hit bool) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("result", lookupResult(hit)),
	))
}
