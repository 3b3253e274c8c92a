package ui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pluginmodernizer/internal/ui"
)

func TestRenderSummaryTable(testInstance *testing.T) {
	rows := []ui.SummaryRow{
		{PluginName: "git", Stage: "PR_OPENED/VERIFIED", HasCommits: true},
		{PluginName: "mailer", Stage: "CLONED/CLEANED", FirstError: "maven clean\n exited with code 1", ErrorCount: 3},
		{PluginName: "bom-api", Stage: "UNFORKED/NONE", SkipReason: "API plugin"},
	}

	var output bytes.Buffer
	require.NoError(testInstance, ui.RenderSummaryTable(&output, rows))

	lines := strings.Split(strings.TrimSuffix(output.String(), "\n"), "\n")
	require.Len(testInstance, lines, 5)
	require.Equal(testInstance, []string{"PLUGIN", "STAGE", "COMMITS", "RESULT"}, strings.Fields(lines[0]))
	require.Equal(testInstance, []string{"git", "PR_OPENED/VERIFIED", "yes", "ok"}, strings.Fields(lines[1]))
	require.True(testInstance, strings.HasSuffix(lines[2], "maven clean exited with code 1 (+2 more)"))
	require.True(testInstance, strings.HasSuffix(lines[3], "skipped: API plugin"))
	require.Equal(testInstance, "3 plugin(s) processed, 1 failed", lines[4])
	require.Equal(testInstance, strings.Index(lines[0], "STAGE"), strings.Index(lines[1], "PR_OPENED"))
}

func TestRenderSummaryTableTruncatesLongErrors(testInstance *testing.T) {
	rows := []ui.SummaryRow{{PluginName: "git", Stage: "FORKED/NONE", FirstError: strings.Repeat("x", 200), ErrorCount: 1}}

	var output bytes.Buffer
	require.NoError(testInstance, ui.RenderSummaryTable(&output, rows))
	require.Contains(testInstance, output.String(), strings.Repeat("x", 160)+"...")
	require.NotContains(testInstance, output.String(), strings.Repeat("x", 161))
}
