package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName identifies spans emitted by the modernizer.
	TracerName = "pluginmodernizer"

	pluginSpanNameConstant  = "plugin"
	pluginAttributeConstant = "plugin.name"
	stageAttributeConstant  = "plugin.stage"
	stageSpanPrefixConstant = "stage "
)

// Tracer returns the tracer from the globally registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartPluginSpan opens the span covering one plugin.
func StartPluginSpan(executionContext context.Context, pluginName string) (context.Context, trace.Span) {
	return Tracer().Start(executionContext, pluginSpanNameConstant, trace.WithAttributes(attribute.String(pluginAttributeConstant, pluginName)))
}

// StartStageSpan opens a child span for one stage.
func StartStageSpan(executionContext context.Context, stage string) (context.Context, trace.Span) {
	return Tracer().Start(executionContext, stageSpanPrefixConstant+stage, trace.WithAttributes(attribute.String(stageAttributeConstant, stage)))
}

// EndSpan records failure on span before ending it.
func EndSpan(span trace.Span, failure error) {
	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	}
	span.End()
}
