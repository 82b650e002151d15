// Package instrumentation turns TokenManager events into metrics.
//
// Metrics records OpenTelemetry counters through any metric.MeterProvider and
// PrometheusSink registers client_golang counter vectors. Both implement
// oauth2client.EventSink together with the optional FailureObserver,
// RetryObserver and CacheObserver interfaces, so either can be passed to
// oauth2client.WithEventSink directly or combined with oauth2client.MultiSink:
//
//	metrics, err := instrumentation.NewMetrics(otel.GetMeterProvider())
//	if err != nil {
//	    return err
//	}
//	promSink, err := instrumentation.NewPrometheusSink(prometheus.DefaultRegisterer)
//	if err != nil {
//	    return err
//	}
//
//	tm, err := oauth2client.NewTokenManager(cfg,
//	    oauth2client.WithEventSink(oauth2client.MultiSink{metrics, promSink}),
//	)
//
// Tokens never appear in metric attributes or labels.
package instrumentation
