// Package tracing wires OpenTelemetry into the gateway and the resilience layer.
//
// InitProvider installs a global tracer provider backed by a stdout or OTLP
// exporter. Middleware traces inbound HTTP requests; outbound service calls are
// traced by the resilience executor and by the otelhttp transport in package
// service.
//
//	shutdown, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
//	    ServiceName: "opsglue-gateway",
//	    Exporter:    "stdout",
//	})
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
package tracing
