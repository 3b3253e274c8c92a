package modernizer

import (
	"fmt"
	"io"
	"sort"

	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/telemetry"
	"github.com/temirov/pluginmodernizer/internal/ui"
)

const pluginFailuresTemplateConstant = "%d of %d plugin(s) failed"

// PluginFailuresError is returned when failures are configured to be fatal and at least one plugin failed.
type PluginFailuresError struct {
	Failed int
	Total  int
}

// Error describes the failure count.
func (failuresError PluginFailuresError) Error() string {
	return fmt.Sprintf(pluginFailuresTemplateConstant, failuresError.Failed, failuresError.Total)
}

// PluginResult is the end-of-run view of one plugin.
type PluginResult struct {
	Name           string
	RepositoryName string
	Stage          plugin.Stage
	BuildStep      plugin.BuildStep
	HasCommits     bool
	SkipReason     string
	Errors         []error
}

// Failed reports whether the plugin recorded any error.
func (result PluginResult) Failed() bool {
	return len(result.Errors) > 0
}

// Outcome classifies the result for metrics.
func (result PluginResult) Outcome() string {
	switch {
	case result.Failed():
		return telemetry.OutcomeFailed
	case len(result.SkipReason) > 0:
		return telemetry.OutcomeSkipped
	default:
		return telemetry.OutcomeSucceeded
	}
}

// Summary lists every processed plugin sorted by name.
type Summary struct {
	Results []PluginResult
}

func newSummary(plugins []*plugin.Plugin) Summary {
	results := make([]PluginResult, 0, len(plugins))
	for _, target := range plugins {
		results = append(results, PluginResult{
			Name:           target.Name(),
			RepositoryName: target.RepositoryName(),
			Stage:          target.Stage(),
			BuildStep:      target.BuildStep(),
			HasCommits:     target.HasCommits(),
			SkipReason:     target.SkipReason(),
			Errors:         target.Errors(),
		})
	}
	sort.Slice(results, func(left int, right int) bool {
		return results[left].Name < results[right].Name
	})
	return Summary{Results: results}
}

// Failed counts plugins with at least one error.
func (summary Summary) Failed() int {
	failed := 0
	for _, result := range summary.Results {
		if result.Failed() {
			failed++
		}
	}
	return failed
}

// Result returns the result recorded for name.
func (summary Summary) Result(name string) (PluginResult, bool) {
	for _, result := range summary.Results {
		if result.Name == name {
			return result, true
		}
	}
	return PluginResult{}, false
}

// Rows converts the summary into table rows.
func (summary Summary) Rows() []ui.SummaryRow {
	rows := make([]ui.SummaryRow, 0, len(summary.Results))
	for _, result := range summary.Results {
		row := ui.SummaryRow{
			PluginName: result.Name,
			Stage:      result.Stage.String() + "/" + result.BuildStep.String(),
			HasCommits: result.HasCommits,
			SkipReason: result.SkipReason,
			ErrorCount: len(result.Errors),
		}
		if result.Failed() {
			row.FirstError = result.Errors[0].Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// Render writes the summary table.
func (summary Summary) Render(writer io.Writer) error {
	return ui.RenderSummaryTable(writer, summary.Rows())
}
