// Package observability provides logging and tracing functionality for
// the routing engine.
//
// Structured logging is implemented via zap behind the Logger interface,
// and distributed tracing via OpenTelemetry with OTLP export.
//
// # Logging
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("decision made",
//	    observability.String("route", "payments"),
//	    observability.String("backend", "payments-eu-1"),
//	)
//
// # Tracing
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{
//	    ServiceName:  "avroute",
//	    OTLPEndpoint: "localhost:4317",
//	    Enabled:      true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
//
// Prometheus metrics are owned by the packages that produce them and are
// exposed by the HTTP server on /metrics.
package observability
