package apidiff

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/internal/report"
)

// Report formats accepted by WriteReport.
const (
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// WriteReport renders run in the given format (json, md or html).
func WriteReport(w io.Writer, run *diffrec.Run, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case FormatMarkdown, "markdown":
		return report.Markdown(w, run)
	case FormatHTML:
		return report.HTML(w, run)
	}
	return fmt.Errorf("%w: report format %q", ErrInvalidInput, format)
}

// ReportContentType returns the MIME type of a report format.
func ReportContentType(format string) string {
	switch format {
	case FormatMarkdown, "markdown":
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/json"
}
