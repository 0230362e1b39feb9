// Package observability bootstraps the shared logger, tracer, and metric
// registry handed to every module.
package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
)

// Config selects log level and names the service for tracing.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string
}

// Provider carries the process-wide logger and tracer provider.
type Provider struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// Registry carries the tracer and metric handles modules consume.
type Registry struct {
	Tracer     trace.Tracer
	Prometheus *prometheus.Registry
	Operations *metrics.Operations
	Handlers   *metrics.Handlers
}

// Observability bundles Provider and Registry.
type Observability struct {
	Provider Provider
	Registry Registry
}

// Init builds the observability stack: JSON slog at the configured level, the
// globally registered tracer provider (noop unless the host process installed
// an exporter), and a dedicated Prometheus registry with Go runtime
// collectors.
func Init(cfg Config) Observability {
	level := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("service", cfg.ServiceName), slog.String("env", cfg.Environment))

	tp := otel.GetTracerProvider()
	tracer := tp.Tracer(cfg.ServiceName)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return Observability{
		Provider: Provider{Logger: logger, TracerProvider: tp},
		Registry: Registry{
			Tracer:     tracer,
			Prometheus: reg,
			Operations: metrics.NewOperations(reg, "midoshouse"),
			Handlers:   metrics.NewHandlers(reg, "midoshouse"),
		},
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
