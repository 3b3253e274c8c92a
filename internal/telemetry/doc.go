// Package telemetry records run metrics in a private Prometheus registry and opens OpenTelemetry spans
// for plugin processing stages.
package telemetry
