package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
)

//go:embed templates/page.html
var templateFS embed.FS

var (
	pageTemplate     *template.Template
	pageTemplateOnce sync.Once
	errPageTemplate  error
)

const styleCloseLen = 8 // len("</style>").

// pageData feeds the page template.
type pageData struct {
	Title       string
	Subtitle    string
	GeneratedAt string
	Stats       []pageStat
	Sections    []pageSection
	Clean       bool
}

type pageStat struct {
	Label string
	Value string
}

type pageSection struct {
	Title    string
	Subtitle string
	Chart    template.HTML
}

// renderable matches the echarts chart render surface.
type renderable interface {
	Render(w io.Writer) error
}

func renderHTML(w io.Writer, result *analysis.Result) error {
	title := result.Project
	if title == "" {
		title = result.Root
	}

	data := pageData{
		Title:       title,
		Subtitle:    result.Root,
		GeneratedAt: time.Now().Format(time.RFC1123),
		Clean:       result.Clean(),
		Stats: []pageStat{
			{Label: "Files scanned", Value: strconv.Itoa(result.Stats.FilesScanned)},
			{Label: "Unused dependencies", Value: strconv.Itoa(len(result.UnusedDependencies))},
			{Label: "Unused files", Value: strconv.Itoa(len(result.UnusedFiles))},
			{Label: "Reclaimable", Value: humanize.IBytes(uint64(result.TotalUnusedBytes()))},
		},
	}

	if len(result.UnusedDependencies) > 0 {
		chart, err := chartContent(dependencyPie(result.UnusedDependencies))
		if err != nil {
			return err
		}

		data.Sections = append(data.Sections, pageSection{
			Title:    "Unused dependency footprint",
			Subtitle: "Installed size of each declared dependency nothing imports.",
			Chart:    chart,
		})
	}

	if len(result.UnusedFiles) > 0 {
		chart, err := chartContent(fileBar(result.UnusedFiles))
		if err != nil {
			return err
		}

		data.Sections = append(data.Sections, pageSection{
			Title:    "Unused files by size",
			Subtitle: "Source files never referenced that reference nothing.",
			Chart:    chart,
		})
	}

	tmpl, err := getPageTemplate()
	if err != nil {
		return err
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute report page: %w", err)
	}

	return nil
}

func getPageTemplate() (*template.Template, error) {
	pageTemplateOnce.Do(func() {
		var parseErr error

		pageTemplate, parseErr = template.ParseFS(templateFS, "templates/page.html")
		if parseErr != nil {
			errPageTemplate = fmt.Errorf("parse report page template: %w", parseErr)
		}
	})

	return pageTemplate, errPageTemplate
}

// chartContent renders a chart standalone and extracts the element and
// init script so it can be embedded in the report page. The echarts
// runtime itself is loaded once by the page head.
func chartContent(chart renderable) (template.HTML, error) {
	var buf bytes.Buffer

	if err := chart.Render(&buf); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	return template.HTML(extractChartContent(buf.String())), nil
}

// extractChartContent cuts the chart container and script out of a full
// standalone echarts page, dropping its page-level styling.
func extractChartContent(page string) string {
	trimmed := strings.TrimSpace(page)
	if !strings.HasPrefix(trimmed, "<!DOCTYPE") && !strings.HasPrefix(trimmed, "<html") {
		return page
	}

	start := strings.Index(page, `<div class="container">`)
	if start == -1 {
		return page
	}

	end := strings.Index(page, `</body>`)
	if end == -1 {
		return page
	}

	content := page[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="chart"`)

	return removeStyleTags(content)
}

func removeStyleTags(content string) string {
	for {
		open := strings.Index(content, "<style>")
		if open == -1 {
			return content
		}

		rest := strings.Index(content[open:], "</style>")
		if rest == -1 {
			return content
		}

		content = content[:open] + content[open+rest+styleCloseLen:]
	}
}
