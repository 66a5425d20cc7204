package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
)

func renderText(w io.Writer, result *analysis.Result) error {
	title := result.Project
	if title == "" {
		title = result.Root
	}

	color.New(color.Bold).Fprintln(w, title)
	fmt.Fprintf(w, "%d files scanned, %d skipped, %d dependencies declared (%.2fs)\n\n",
		result.Stats.FilesScanned,
		result.Stats.FilesSkipped,
		result.Stats.DependenciesDeclared,
		result.Stats.ElapsedSeconds,
	)

	if result.Clean() {
		color.New(color.FgGreen).Fprintln(w, "No unused dependencies or files found.")

		renderSkippedText(w, result)

		return nil
	}

	if len(result.UnusedDependencies) > 0 {
		color.New(color.FgRed).Fprintf(w, "Unused dependencies (%d)\n", len(result.UnusedDependencies))

		tbl := newTable(w)
		tbl.AppendHeader(table.Row{"Name", "Version", "Installed Size"})

		for _, dep := range result.UnusedDependencies {
			tbl.AppendRow(table.Row{dep.Name, dep.Version, sizeLabel(dep.SizeBytes)})
		}

		tbl.Render()
		fmt.Fprintln(w)
	}

	if len(result.UnusedFiles) > 0 {
		color.New(color.FgRed).Fprintf(w, "Unused files (%d)\n", len(result.UnusedFiles))

		tbl := newTable(w)
		tbl.AppendHeader(table.Row{"Path", "Last Modified", "Size"})

		for _, file := range result.UnusedFiles {
			tbl.AppendRow(table.Row{file.Path, humanize.Time(file.LastModified), sizeLabel(file.SizeBytes)})
		}

		tbl.Render()
		fmt.Fprintln(w)
	}

	renderSkippedText(w, result)

	color.New(color.FgYellow).Fprintf(w, "Estimated reclaimable space: %s\n",
		humanize.IBytes(uint64(result.TotalUnusedBytes())))

	return nil
}

func renderSkippedText(w io.Writer, result *analysis.Result) {
	if len(result.SkippedFiles) == 0 {
		return
	}

	color.New(color.FgYellow).Fprintf(w, "Skipped files (%d)\n", len(result.SkippedFiles))

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Path", "Reason"})

	for _, file := range result.SkippedFiles {
		tbl.AppendRow(table.Row{file.Path, file.Reason})
	}

	tbl.Render()
	fmt.Fprintln(w)
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateRows = false

	return tbl
}

func sizeLabel(size int64) string {
	if size <= 0 {
		return "-"
	}

	return humanize.IBytes(uint64(size))
}
