package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/pipeline"
)

// maxFailureRows caps the failure table; the rest is summarised in one line
const maxFailureRows = 20

// RenderReport draws the per-stage table of a run
func RenderReport(report *pipeline.Report, color bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	// footer carries the run id, which must not be upper-cased
	tw.Style().Format.Footer = text.FormatDefault
	if color {
		tw.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	}
	tw.AppendHeader(table.Row{"Stage", "Items", "Skipped", "Failed", "Elapsed", "Note"})

	var items, skipped, failed int
	for _, s := range report.Stages {
		note := s.Note
		elapsed := s.Elapsed.Round(time.Millisecond).String()
		if s.Resumed {
			note = "completed in an earlier attempt"
			elapsed = "-"
		}
		failedCell := fmt.Sprint(s.Failed)
		if color && s.Failed > 0 {
			failedCell = text.FgRed.Sprint(failedCell)
		}
		tw.AppendRow(table.Row{string(s.Stage), s.Items, s.Skipped, failedCell, elapsed, note})
		items += s.Items
		skipped += s.Skipped
		failed += s.Failed
	}
	tw.AppendFooter(table.Row{"total", items, skipped, failed, "", report.RunID})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

// RenderFailures lists item failures grouped by stage
func RenderFailures(failures []errs.ItemFailure) string {
	if len(failures) == 0 {
		return ""
	}
	sorted := append([]errs.ItemFailure(nil), failures...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return stageOrder(sorted[i].Stage) < stageOrder(sorted[j].Stage)
	})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Stage", "Item", "Error"})
	for i, f := range sorted {
		if i == maxFailureRows {
			tw.AppendRow(table.Row{"", fmt.Sprintf("... %d more", len(sorted)-maxFailureRows), ""})
			break
		}
		tw.AppendRow(table.Row{f.Stage, f.Item, f.Error})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 60}})
	return tw.Render()
}

func stageOrder(stage string) int {
	for i, s := range pipeline.Stages {
		if string(s) == stage {
			return i
		}
	}
	return len(pipeline.Stages)
}
