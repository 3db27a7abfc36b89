package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sillsdev/silauto-backend/internal/platform/envutil"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

const (
	defaultServiceName = "silauto-backend"
	defaultSampleRatio = 0.1
	tracerName         = "github.com/sillsdev/silauto-backend"
)

type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
	// DataDir and CatalogDriver tag every span so traces from nodes sharing one
	// SILNLP data tree can be told apart from ones that don't.
	DataDir       string
	CatalogDriver string
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider when OTEL_ENABLED is set.
// The returned shutdown func is nil when tracing is off.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !envutil.Bool("OTEL_ENABLED", false) {
			return
		}
		res, err := resource.New(ctx,
			resource.WithHost(),
			resource.WithAttributes(resourceAttributes(cfg)...),
		)
		if err != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(envutil.String("OTEL_SAMPLER_RATIO", ""))))),
			sdktrace.WithResource(res),
		}
		exporter, err := traceExporter(ctx, log)
		if err != nil {
			log.Warn("otel exporter init failed; spans are sampled but not exported", "error", err)
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName(cfg), "endpoint", envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "stdout"))
	})
	return otelShutdown
}

func serviceName(cfg OtelConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return defaultServiceName
}

func resourceAttributes(cfg OtelConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName(cfg)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	}
	if v := strings.TrimSpace(cfg.Version); v != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(v))
	}
	if cfg.DataDir != "" {
		attrs = append(attrs, attribute.String("silauto.data_dir", cfg.DataDir))
	}
	if cfg.CatalogDriver != "" {
		attrs = append(attrs, attribute.String("silauto.catalog.driver", cfg.CatalogDriver))
	}
	return attrs
}

// sampleRatio parses OTEL_SAMPLER_RATIO, clamped to [0, 1].
func sampleRatio(raw string) float64 {
	if raw == "" {
		return defaultSampleRatio
	}
	f, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil:
		return defaultSampleRatio
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// parseHeaders reads "k1=v1,k2=v2" as OTEL_EXPORTER_OTLP_HEADERS does.
func parseHeaders(items []string) map[string]string {
	headers := map[string]string{}
	for _, item := range items {
		key, val, ok := strings.Cut(item, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if ok && key != "" && val != "" {
			headers[key] = val
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// traceExporter ships spans over OTLP/http when an endpoint is set, else pretty-prints them.
func traceExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	endpoint := envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if endpoint == "" {
		log.Warn("otel using stdout exporter (no OTLP endpoint configured)")
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false) {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if headers := parseHeaders(envutil.List("OTEL_EXPORTER_OTLP_HEADERS", nil)); headers != nil {
		opts = append(opts, otlptracehttp.WithHeaders(headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

// Tracer is the tracer used for scans and task lifecycle spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
