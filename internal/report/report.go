// Package report renders analysis results for terminals, machines, and
// browsers. The text form is the default CLI output; json and yaml
// serve scripting; html produces a single self-contained page with
// charts of what the scan found.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
)

// Format selects a report encoding.
type Format string

// Supported report formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// ErrUnknownFormat marks format names Render does not understand.
var ErrUnknownFormat = errors.New("report: unknown format")

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch format := Format(name); format {
	case FormatText, FormatJSON, FormatYAML, FormatHTML:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Render writes result to w in the given format.
func Render(w io.Writer, result *analysis.Result, format Format) error {
	switch format {
	case FormatText:
		return renderText(w, result)
	case FormatJSON:
		return renderJSON(w, result)
	case FormatYAML:
		return renderYAML(w, result)
	case FormatHTML:
		return renderHTML(w, result)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
