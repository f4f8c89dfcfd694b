// Package observability wires logging, metrics and tracing for scs.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config is the subset of the scs configuration this package needs.
type Config struct {
	LogLevel       string
	LogFormat      string
	MetricsFile    string
	OTLPEndpoint   string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
}

// Observability holds all observability components.
type Observability struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
	Shutdown       *ShutdownCoordinator
}

// New initializes logging to w, a metrics registry, and tracing.
func New(ctx context.Context, cfg Config, w io.Writer) (*Observability, error) {
	shutdown := &ShutdownCoordinator{}
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat, w)
	metrics := NewMetrics()

	var tp trace.TracerProvider
	if cfg.OTLPEndpoint != "" {
		sdkTP, err := InitTracer(ctx, TracerConfig{
			Endpoint:       cfg.OTLPEndpoint,
			Protocol:       cfg.OTLPProtocol,
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		shutdown.Register("tracer", sdkTP.Shutdown)
		tp = sdkTP
	} else {
		tp = tracenoop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		logger.Debug("tracing disabled (no otlp_endpoint configured)")
	}

	if cfg.MetricsFile != "" {
		path := cfg.MetricsFile
		shutdown.Register("metrics-file", func(context.Context) error {
			return metrics.WriteTextfile(path)
		})
	}

	return &Observability{
		Logger:         logger,
		Metrics:        metrics,
		TracerProvider: tp,
		Shutdown:       shutdown,
	}, nil
}

// Close flushes traces, writes the metrics file and runs other shutdown handlers.
func (o *Observability) Close(ctx context.Context) error {
	return o.Shutdown.Shutdown(ctx)
}
