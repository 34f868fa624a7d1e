// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tombee/rdbg/internal/tracing/export"
	"github.com/tombee/rdbg/pkg/errors"
)

// Exporter names.
const (
	ExporterNone     = "none"
	ExporterConsole  = "console"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config selects and configures the span exporter.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Exporter is one of the Exporter* names.
	Exporter string

	// Endpoint is the OTLP collector address.
	Endpoint string
	Insecure bool
	Headers  map[string]string

	// Writer receives console output. Defaults to os.Stderr.
	Writer io.Writer

	// SampleRate is the fraction of traces kept. Values >= 1 keep all.
	SampleRate float64
}

// ConfigFromEnv builds a Config from the environment.
func ConfigFromEnv(serviceName, version string) Config {
	cfg := Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Exporter:       ExporterNone,
		SampleRate:     1,
	}

	if v := os.Getenv("RDBG_TRACE"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Exporter = ExporterConsole
	}
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		cfg.Endpoint = ep
		if cfg.Exporter == ExporterNone {
			cfg.Exporter = ExporterOTLPHTTP
		}
	}
	if v := os.Getenv("RDBG_TRACE_EXPORTER"); v != "" {
		cfg.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		cfg.Insecure, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("RDBG_TRACE_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SampleRate = rate
		}
	}
	return cfg
}

// Provider owns the SDK tracer provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds a tracer provider for cfg and installs it globally.
// With ExporterNone the provider samples nothing.
func NewProvider(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	allOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg)),
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		if cfg.Exporter == ExporterConsole {
			allOpts = append(allOpts, sdktrace.WithSyncer(exporter))
		} else {
			allOpts = append(allOpts, sdktrace.WithBatcher(exporter))
		}
	}

	tp := sdktrace.NewTracerProvider(append(allOpts, opts...)...)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

func sampler(cfg Config) sdktrace.Sampler {
	switch {
	case cfg.Exporter == ExporterNone || cfg.Exporter == "":
		return sdktrace.NeverSample()
	case cfg.SampleRate >= 1:
		return sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterConsole:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return export.NewConsoleExporter(w)
	case ExporterOTLPHTTP:
		if cfg.Endpoint == "" {
			return nil, &errors.ConfigError{Key: "OTEL_EXPORTER_OTLP_ENDPOINT", Reason: "OTLP endpoint is required"}
		}
		return export.NewOTLPHTTPExporter(ctx, export.OTLPConfig{
			Endpoint: trimScheme(cfg.Endpoint),
			Insecure: cfg.Insecure || strings.HasPrefix(cfg.Endpoint, "http://"),
			Headers:  cfg.Headers,
		})
	case ExporterOTLPGRPC:
		if cfg.Endpoint == "" {
			return nil, &errors.ConfigError{Key: "OTEL_EXPORTER_OTLP_ENDPOINT", Reason: "OTLP endpoint is required"}
		}
		return export.NewOTLPExporter(ctx, export.OTLPConfig{
			Endpoint: trimScheme(cfg.Endpoint),
			Insecure: cfg.Insecure,
			Headers:  cfg.Headers,
		})
	default:
		return nil, &errors.ConfigError{
			Key:    "RDBG_TRACE_EXPORTER",
			Reason: fmt.Sprintf("unknown exporter %q (want none, console, otlp-http or otlp-grpc)", cfg.Exporter),
		}
	}
}

// trimScheme strips http(s):// since the OTLP options take host:port.
func trimScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

// Shutdown flushes pending spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// ForceFlush exports pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.tp.ForceFlush(ctx)
}
