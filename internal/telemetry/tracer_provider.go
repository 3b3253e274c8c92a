package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Span exporters selectable through TracingOptions.
const (
	ExporterNone = "none"
	ExporterLog  = "log"
	ExporterOTLP = "otlp"
)

const (
	serviceNameAttributeConstant = "service.name"
	exporterSetupTimeout         = 10 * time.Second
	exportBatchTimeout           = 5 * time.Second
	exportBatchSize              = 512

	unknownExporterTemplate      = "unknown span exporter %q"
	exporterSetupErrorTemplate   = "create %s span exporter: %w"
	logMessageSpanCompleted      = "Span completed"
	logMessageTracingEnabled     = "Tracing enabled"
	logMessageTracingShutdown    = "Unable to flush spans"
	logFieldSpanConstant         = "span"
	logFieldTraceIDConstant      = "trace_id"
	logFieldSpanIDConstant       = "span_id"
	logFieldDurationConstant     = "duration"
	logFieldStatusConstant       = "status"
	logFieldExporterConstant     = "exporter"
	logFieldEndpointConstant     = "endpoint"
	logFieldAttributePrefix      = "attr."
	otlpEndpointRequiredConstant = "endpoint required"
)

// ErrEndpointRequired indicates the otlp exporter was selected without a collector endpoint.
var ErrEndpointRequired = errors.New(otlpEndpointRequiredConstant)

// TracingOptions selects where plugin and stage spans are exported.
type TracingOptions struct {
	Exporter string
	Endpoint string
	Insecure bool
}

// TracerProvider owns the SDK provider installed for a run. The zero exporter leaves the
// global no-op provider in place.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

// NewTracerProvider builds a provider exporting through the configured exporter.
func NewTracerProvider(executionContext context.Context, options TracingOptions, logger *zap.Logger) (*TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	exporterName := strings.ToLower(strings.TrimSpace(options.Exporter))
	processor, processorError := newSpanProcessor(executionContext, exporterName, options, logger)
	if processorError != nil {
		return nil, processorError
	}
	if processor == nil {
		return &TracerProvider{logger: logger}, nil
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String(serviceNameAttributeConstant, TracerName))),
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	logger.Debug(logMessageTracingEnabled, zap.String(logFieldExporterConstant, exporterName), zap.String(logFieldEndpointConstant, options.Endpoint))
	return &TracerProvider{provider: provider, logger: logger}, nil
}

func newSpanProcessor(executionContext context.Context, exporterName string, options TracingOptions, logger *zap.Logger) (sdktrace.SpanProcessor, error) {
	switch exporterName {
	case "", ExporterNone:
		return nil, nil
	case ExporterLog:
		return sdktrace.NewSimpleSpanProcessor(logSpanExporter{logger: logger}), nil
	case ExporterOTLP:
		endpoint := strings.TrimSpace(options.Endpoint)
		if len(endpoint) == 0 {
			return nil, fmt.Errorf(exporterSetupErrorTemplate, exporterName, ErrEndpointRequired)
		}
		setupContext, cancel := context.WithTimeout(executionContext, exporterSetupTimeout)
		defer cancel()
		exporterOptions := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if options.Insecure {
			exporterOptions = append(exporterOptions, otlptracegrpc.WithInsecure())
		}
		exporter, exporterError := otlptracegrpc.New(setupContext, exporterOptions...)
		if exporterError != nil {
			return nil, fmt.Errorf(exporterSetupErrorTemplate, exporterName, exporterError)
		}
		return sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithBatchTimeout(exportBatchTimeout),
			sdktrace.WithMaxExportBatchSize(exportBatchSize),
		), nil
	default:
		return nil, fmt.Errorf(unknownExporterTemplate, exporterName)
	}
}

// Enabled reports whether spans are recorded.
func (tracerProvider *TracerProvider) Enabled() bool {
	return tracerProvider != nil && tracerProvider.provider != nil
}

// Install registers the provider and the W3C propagators globally so Tracer and otelhttp use them.
func (tracerProvider *TracerProvider) Install() {
	if !tracerProvider.Enabled() {
		return
	}
	otel.SetTracerProvider(tracerProvider.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}

// Tracer returns a tracer backed by this provider, or the global tracer when disabled.
func (tracerProvider *TracerProvider) Tracer() trace.Tracer {
	if !tracerProvider.Enabled() {
		return Tracer()
	}
	return tracerProvider.provider.Tracer(TracerName)
}

// Shutdown flushes pending spans and stops the exporter.
func (tracerProvider *TracerProvider) Shutdown(executionContext context.Context) error {
	if !tracerProvider.Enabled() {
		return nil
	}
	if shutdownError := tracerProvider.provider.Shutdown(executionContext); shutdownError != nil {
		tracerProvider.logger.Warn(logMessageTracingShutdown, zap.Error(shutdownError))
		return shutdownError
	}
	return nil
}

// logSpanExporter writes finished spans to the debug log.
type logSpanExporter struct {
	logger *zap.Logger
}

func (exporter logSpanExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := []zap.Field{
			zap.String(logFieldSpanConstant, span.Name()),
			zap.String(logFieldTraceIDConstant, span.SpanContext().TraceID().String()),
			zap.String(logFieldSpanIDConstant, span.SpanContext().SpanID().String()),
			zap.Duration(logFieldDurationConstant, span.EndTime().Sub(span.StartTime())),
		}
		for _, spanAttribute := range span.Attributes() {
			fields = append(fields, zap.String(logFieldAttributePrefix+string(spanAttribute.Key), spanAttribute.Value.Emit()))
		}
		if span.Status().Code == codes.Error {
			fields = append(fields, zap.String(logFieldStatusConstant, span.Status().Description))
		}
		exporter.logger.Debug(logMessageSpanCompleted, fields...)
	}
	return nil
}

func (exporter logSpanExporter) Shutdown(context.Context) error {
	return nil
}
