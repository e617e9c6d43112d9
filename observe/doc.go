// Package observe provides the telemetry surface for the httpkit client:
// OpenTelemetry tracing and metrics plus a structured JSON logger.
//
// The client reports every completed attempt (success or failure) here
// with method, URL, status or error, and duration. Telemetry is a
// side-effecting collaborator outside the client's correctness
// boundary: a broken exporter never fails a request.
//
// # Usage
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "field-ops-sdk",
//	    Version:     "1.4.2",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.1},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
//	telemetry, err := observe.NewTelemetry(obs)
//
// Pass the Telemetry into the client configuration. When no telemetry
// is configured the client uses NewNoopTelemetry, which discards
// everything at negligible cost.
package observe
