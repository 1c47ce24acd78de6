// Package telemetry initializes OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Mode selects how much tracing the service emits. "errors" and "sampled"
// ratio-sample through the parent-based sampler; "detailed" additionally
// turns on per-dependency spans around outbound GitHub calls.
type Mode string

const (
	ModeOff      Mode = "off"
	ModeErrors   Mode = "errors"
	ModeSampled  Mode = "sampled"
	ModeDetailed Mode = "detailed"
)

// ParseMode normalizes a configured mode string. Unrecognized or empty
// values fall back to sampled.
func ParseMode(raw string) Mode {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ModeOff, ModeErrors, ModeDetailed:
		return mode
	default:
		return ModeSampled
	}
}

func (m Mode) sampler(ratio float64) sdktrace.Sampler {
	switch m {
	case ModeOff:
		return sdktrace.NeverSample()
	case ModeDetailed:
		return sdktrace.AlwaysSample()
	}

	if ratio > 1 {
		ratio = 1
	}
	if ratio <= 0 {
		if m == ModeErrors {
			ratio = 0.01
		} else {
			ratio = 0
		}
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

var activeMode atomic.Value

// Config configures OpenTelemetry tracing setup.
type Config struct {
	Enabled          bool
	ServiceName      string
	TraceMode        string
	TraceSampleRatio float64
}

// Runtime contains initialized telemetry providers and lifecycle hooks.
type Runtime struct {
	TracerProvider *sdktrace.TracerProvider
	Shutdown       func(ctx context.Context) error
}

// Setup installs a global tracer provider for the configured mode. The
// resolved mode stays readable through TraceMode for handlers that gate
// span creation themselves.
func Setup(cfg Config) (Runtime, error) {
	mode := ParseMode(cfg.TraceMode)
	if !cfg.Enabled {
		mode = ModeOff
	}
	activeMode.Store(mode)

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "gitboard"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(name)),
	)
	if err != nil {
		return Runtime{}, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(mode.sampler(cfg.TraceSampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return Runtime{TracerProvider: provider, Shutdown: provider.Shutdown}, nil
}

// TraceMode reports the mode resolved at Setup, or "off" before Setup runs.
func TraceMode() string {
	if mode, ok := activeMode.Load().(Mode); ok && mode != "" {
		return string(mode)
	}
	return string(ModeOff)
}

// ShouldTraceDependencies reports if detailed dependency spans should be emitted.
func ShouldTraceDependencies() bool {
	return TraceMode() == string(ModeDetailed)
}
