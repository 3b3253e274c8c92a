package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/temirov/pluginmodernizer/internal/execshell"
)

// Plugin outcomes recorded by RecordPlugin.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

const (
	metricNamespaceConstant      = "pluginmodernizer"
	pluginsProcessedNameConstant = "plugins_processed_total"
	stageFailuresNameConstant    = "stage_failures_total"
	commandDurationNameConstant  = "command_duration_seconds"
	metadataFetchNameConstant    = "metadata_fetch_total"
	outcomeLabelConstant         = "outcome"
	stageLabelConstant           = "stage"
	commandLabelConstant         = "command"
	snapshotLabelConstant        = "snapshot"
	sourceLabelConstant          = "source"
	commandExecutionStagePrefix  = "exec:"
)

// Metrics collects counters and histograms for one modernization run.
type Metrics struct {
	registry         *prometheus.Registry
	pluginsProcessed *prometheus.CounterVec
	stageFailures    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	metadataFetches  *prometheus.CounterVec
}

var _ execshell.CommandEventObserver = (*Metrics)(nil)

// NewMetrics creates and registers every run metric in a fresh registry.
func NewMetrics() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		pluginsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespaceConstant,
				Name:      pluginsProcessedNameConstant,
				Help:      "Plugins processed by outcome",
			},
			[]string{outcomeLabelConstant},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespaceConstant,
				Name:      stageFailuresNameConstant,
				Help:      "Per-plugin stage failures",
			},
			[]string{stageLabelConstant},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricNamespaceConstant,
				Name:      commandDurationNameConstant,
				Help:      "External command duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
			},
			[]string{commandLabelConstant},
		),
		metadataFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespaceConstant,
				Name:      metadataFetchNameConstant,
				Help:      "Metadata snapshot resolutions by source",
			},
			[]string{snapshotLabelConstant, sourceLabelConstant},
		),
	}
	metrics.registry.MustRegister(metrics.pluginsProcessed, metrics.stageFailures, metrics.commandDuration, metrics.metadataFetches)
	return metrics
}

// Registry exposes the registry backing the metrics.
func (metrics *Metrics) Registry() *prometheus.Registry {
	return metrics.registry
}

// RecordPlugin counts one processed plugin.
func (metrics *Metrics) RecordPlugin(outcome string) {
	if metrics == nil {
		return
	}
	metrics.pluginsProcessed.WithLabelValues(outcome).Inc()
}

// RecordStageFailure counts one failed stage.
func (metrics *Metrics) RecordStageFailure(stage string) {
	if metrics == nil {
		return
	}
	metrics.stageFailures.WithLabelValues(stage).Inc()
}

// SnapshotResolved implements metadata.FetchObserver.
func (metrics *Metrics) SnapshotResolved(snapshot string, source string) {
	if metrics == nil {
		return
	}
	metrics.metadataFetches.WithLabelValues(snapshot, source).Inc()
}

// CommandStarted implements execshell.CommandEventObserver.
func (metrics *Metrics) CommandStarted(execshell.ShellCommand) {}

// CommandCompleted records the command duration.
func (metrics *Metrics) CommandCompleted(command execshell.ShellCommand, _ execshell.ExecutionResult, elapsed time.Duration) {
	if metrics == nil {
		return
	}
	metrics.commandDuration.WithLabelValues(string(command.Name.Tool())).Observe(elapsed.Seconds())
}

// CommandExecutionFailed counts commands that never produced a result as a failed stage.
func (metrics *Metrics) CommandExecutionFailed(command execshell.ShellCommand, _ error) {
	if metrics == nil {
		return
	}
	metrics.stageFailures.WithLabelValues(commandExecutionStagePrefix + string(command.Name.Tool())).Inc()
}

// WriteTextfile writes every metric in the text exposition format for the node exporter textfile collector.
func (metrics *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, metrics.registry)
}
