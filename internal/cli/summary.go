package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// fileResult is one row of a batch summary.
type fileResult struct {
	Input             string
	Output            string
	TextboxesRemoved  int
	DuplicatesRemoved int
	Substitutions     int
	Err               error
}

// printSummary renders a batch run as a table, with failures listed below
// it. Inputs that failed do not contribute rows or totals.
func printSummary(w io.Writer, title string, results []fileResult) {
	header := color.New(color.FgCyan, color.Bold)
	_, _ = header.Fprintln(w, title)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"File", "Textboxes", "Duplicates", "Substitutions", "Output"})

	var textboxes, duplicates, substitutions, ok int
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		tw.AppendRow(table.Row{res.Input, res.TextboxesRemoved, res.DuplicatesRemoved, res.Substitutions, res.Output})
		textboxes += res.TextboxesRemoved
		duplicates += res.DuplicatesRemoved
		substitutions += res.Substitutions
		ok++
	}
	if ok > 1 {
		tw.AppendFooter(table.Row{"Total", textboxes, duplicates, substitutions, ""})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()

	var failed []fileResult
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	if len(failed) > 0 {
		errHeader := color.New(color.FgRed, color.Bold)
		_, _ = errHeader.Fprintln(w, "Failures")
		for _, res := range failed {
			fmt.Fprintf(w, "  %s: %v\n", res.Input, res.Err)
		}
	}
}

// summaryError folds per-file failures into a single command error.
func summaryError(results []fileResult) error {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", failed, len(results))
}
