package instrumentation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AmmannChristian/go-oidcx/oauth2client"
)

// PrometheusSink counts token lifecycle activity in Prometheus counter vectors.
type PrometheusSink struct {
	refreshed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	retried   *prometheus.CounterVec
	lookups   *prometheus.CounterVec
}

// NewPrometheusSink creates the counters and registers them with reg.
// A nil reg selects prometheus.DefaultRegisterer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &PrometheusSink{
		refreshed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oidcx_token_refreshed_total",
			Help: "Count of successful token refreshes.",
		}, []string{"reason"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oidcx_token_refresh_failed_total",
			Help: "Count of failed token refreshes.",
		}, []string{"reason", "error_type"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oidcx_request_retried_total",
			Help: "Count of requests replayed with a refreshed token.",
		}, []string{"status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oidcx_token_cache_lookups_total",
			Help: "Count of token cache lookups.",
		}, []string{"tier", "result"}),
	}

	for _, c := range []prometheus.Collector{s.refreshed, s.failed, s.retried, s.lookups} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("instrumentation: failed to register collector: %w", err)
		}
	}

	return s, nil
}

// TokenRefreshed implements oauth2client.EventSink.
func (s *PrometheusSink) TokenRefreshed(_ context.Context, event oauth2client.Event) {
	s.refreshed.With(prometheus.Labels{"reason": string(event.Reason)}).Inc()
}

// RefreshFailed implements oauth2client.FailureObserver.
func (s *PrometheusSink) RefreshFailed(_ context.Context, reason oauth2client.RefreshReason, err error) {
	s.failed.With(prometheus.Labels{"reason": string(reason), "error_type": ErrorType(err)}).Inc()
}

// RequestRetried implements oauth2client.RetryObserver.
func (s *PrometheusSink) RequestRetried(_ context.Context, status int) {
	s.retried.With(prometheus.Labels{"status": strconv.Itoa(status)}).Inc()
}

// CacheLookup implements oauth2client.CacheObserver.
func (s *PrometheusSink) CacheLookup(_ context.Context, tier string, hit bool) {
	s.lookups.With(prometheus.Labels{"tier": tier, "result": lookupResult(hit)}).Inc()
}
