// Package tracing builds the process tracer provider. Spans are always sampled so every log
// line written under a request carries its trace and span ids.
package tracing

import (
	"fmt"
	"io"
	"strings"

	"github.com/mdobak/go-xerrors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/khaledhikmat/seat-go/service/config"
)

const ServiceName = "seat-detector"

// NewProvider returns an SDK tracer provider. The "stdout" exporter writes finished spans to w
// as JSON, "none" keeps spans in process only. Callers own Shutdown.
func NewProvider(cfgsvc config.IService, w io.Writer, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	all := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	}

	switch strings.ToLower(cfgsvc.GetTraceExporter()) {
	case "", "none":
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, xerrors.New("creating stdout trace exporter", err)
		}
		all = append(all, sdktrace.WithBatcher(exp))
	default:
		return nil, xerrors.New(fmt.Sprintf("unknown trace exporter %q", cfgsvc.GetTraceExporter()))
	}

	return sdktrace.NewTracerProvider(append(all, opts...)...), nil
}
