// Package otel sets up OpenTelemetry tracing for keyseq processes.
//
// Initialize installs a global tracer provider whose spans go to stdout,
// to a Zipkin collector, or nowhere. Executors pick it up through
// keyseq.Config.Tracer = otel.Tracer("...").
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-logr/logr"
	gootel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/keyseq/pkg/core"
)

// DefaultZipkinEndpoint is the collector URL used when Endpoint is empty.
const DefaultZipkinEndpoint = "http://localhost:9411/api/v2/spans"

// ErrUnknownExporter is returned by Initialize for an unsupported exporter name.
var ErrUnknownExporter = errors.New("otel: unknown exporter")

// Config configures tracing
type Config struct {
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	Exporter       string  `yaml:"exporter"` // stdout, zipkin or none
	Endpoint       string  `yaml:"endpoint"` // zipkin collector URL
	SampleRate     float64 `yaml:"sample_rate"`

	// Writer receives stdout exporter output. Default: os.Stdout.
	Writer io.Writer `yaml:"-"`
	// Logger receives errors reported by the SDK.
	Logger core.Logger `yaml:"-"`
}

// DefaultConfig returns a stdout configuration sampling every trace.
func DefaultConfig() Config {
	return Config{
		ServiceName: "keyseq",
		Exporter:    "stdout",
		SampleRate:  1.0,
	}
}

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// Initialize builds a tracer provider from cfg and installs it globally.
// A provider installed by an earlier call is shut down first.
func Initialize(ctx context.Context, cfg Config) error {
	exporter, err := newExporter(cfg)
	if err != nil {
		return err
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return fmt.Errorf("otel: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	mu.Lock()
	prev := provider
	provider = tp
	mu.Unlock()
	if prev != nil {
		_ = prev.Shutdown(ctx)
	}

	if cfg.Logger != nil {
		logger := cfg.Logger
		gootel.SetErrorHandler(gootel.ErrorHandlerFunc(func(err error) {
			logger.Errorf("otel: %v", err)
		}))
	}
	gootel.SetTracerProvider(tp)
	return nil
}

// IsInitialized reports whether Initialize installed a provider that has
// not been shut down.
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return provider != nil
}

// Tracer returns a tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return gootel.Tracer(name)
}

// SetLogger routes the SDK's internal logging to l.
func SetLogger(l logr.Logger) {
	gootel.SetLogger(l)
}

// Shutdown flushes pending spans and stops the provider installed by
// Initialize. It is a no-op when nothing is installed.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case "zipkin":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultZipkinEndpoint
		}
		return zipkin.New(endpoint)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
	}
}

// sampler samples every trace for rates outside (0, 1).
func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 || rate >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}
