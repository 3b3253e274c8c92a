package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	summaryHeaderConstant          = "PLUGIN\tSTAGE\tCOMMITS\tRESULT"
	summaryRowTemplateConstant     = "%s\t%s\t%s\t%s\n"
	summaryFooterTemplateConstant  = "%d plugin(s) processed, %d failed\n"
	summaryResultSucceededConstant = "ok"
	summaryResultSkippedTemplate   = "skipped: %s"
	summaryCommitsYesConstant      = "yes"
	summaryCommitsNoConstant       = "no"
	summaryTabMinWidthConstant     = 0
	summaryTabWidthConstant        = 4
	summaryTabPaddingConstant      = 2
	summaryTabPaddingCharConstant  = ' '
	summaryMessageLimitConstant    = 160
	summaryTruncationSuffix        = "..."
)

// SummaryRow describes one plugin in the end-of-run report.
type SummaryRow struct {
	PluginName string
	Stage      string
	HasCommits bool
	FirstError string
	ErrorCount int
	SkipReason string
}

// RenderSummaryTable writes an aligned end-of-run table listing every row and its first error.
func RenderSummaryTable(writer io.Writer, rows []SummaryRow) error {
	tableWriter := tabwriter.NewWriter(writer, summaryTabMinWidthConstant, summaryTabWidthConstant, summaryTabPaddingConstant, summaryTabPaddingCharConstant, 0)
	if _, writeError := fmt.Fprintln(tableWriter, summaryHeaderConstant); writeError != nil {
		return writeError
	}

	failedCount := 0
	for _, row := range rows {
		result := summaryResultSucceededConstant
		switch {
		case row.ErrorCount > 0:
			failedCount++
			result = describeFailure(row)
		case len(row.SkipReason) > 0:
			result = fmt.Sprintf(summaryResultSkippedTemplate, row.SkipReason)
		}
		commits := summaryCommitsNoConstant
		if row.HasCommits {
			commits = summaryCommitsYesConstant
		}
		if _, writeError := fmt.Fprintf(tableWriter, summaryRowTemplateConstant, row.PluginName, row.Stage, commits, result); writeError != nil {
			return writeError
		}
	}

	if flushError := tableWriter.Flush(); flushError != nil {
		return flushError
	}
	_, writeError := fmt.Fprintf(writer, summaryFooterTemplateConstant, len(rows), failedCount)
	return writeError
}

func describeFailure(row SummaryRow) string {
	message := strings.Join(strings.Fields(row.FirstError), " ")
	if len(message) > summaryMessageLimitConstant {
		message = message[:summaryMessageLimitConstant] + summaryTruncationSuffix
	}
	if row.ErrorCount > 1 {
		return fmt.Sprintf("%s (+%d more)", message, row.ErrorCount-1)
	}
	return message
}
