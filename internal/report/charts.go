package report

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
)

const (
	chartWidth  = "100%"
	chartHeight = "480px"

	// maxBarFiles caps the file chart so pathological projects stay
	// readable; the full list is always in the tables and json output.
	maxBarFiles = 40

	axisLabelRotate = 40
	maxPathLabelLen = 36
)

var pieRadius = []string{"35%", "70%"}

func dependencyPie(deps []analysis.UnusedDependency) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom", Type: "scroll"}),
	)

	pieData := make([]opts.PieData, len(deps))
	for idx, dep := range deps {
		pieData[idx] = opts.PieData{Name: dep.Name, Value: dep.SizeBytes}
	}

	pie.AddSeries("Installed size", pieData).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
			charts.WithPieChartOpts(opts.PieChart{Radius: pieRadius}),
		)

	return pie
}

func fileBar(files []analysis.UnusedFile) *charts.Bar {
	shown := files
	if len(shown) > maxBarFiles {
		shown = shown[:maxBarFiles]
	}

	labels := make([]string, len(shown))
	values := make([]opts.BarData, len(shown))

	for idx, file := range shown {
		labels[idx] = truncatePath(file.Path)
		values[idx] = opts.BarData{Value: file.SizeBytes}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Rotate: axisLabelRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bytes"}),
		charts.WithGridOpts(opts.Grid{ContainLabel: opts.Bool(true), Bottom: "15%"}),
	)

	bar.SetXAxis(labels)
	bar.AddSeries("Size", values)

	return bar
}

func truncatePath(path string) string {
	if len(path) <= maxPathLabelLen {
		return path
	}

	return "..." + path[len(path)-maxPathLabelLen+3:]
}
