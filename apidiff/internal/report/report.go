// Package report renders a comparison run as a standalone HTML page or as
// Markdown.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

// maxValueLen caps the rendered length of one old/new value.
const maxValueLen = 240

var (
	page = template.Must(template.New("report").Funcs(template.FuncMap{
		"sevclass": func(s diffrec.Severity) string {
			if s == "" {
				return "none"
			}
			return string(s)
		},
		"pct": func(r float64) float64 { return r * 100 },
	}).Parse(pageTemplate))

	// inlinePolicy admits only the markup diffmatchpatch emits.
	inlinePolicy = func() *bluemonday.Policy {
		p := bluemonday.NewPolicy()
		p.AllowElements("ins", "del", "span", "br")
		return p
	}()

	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

type pageData struct {
	Run         *diffrec.Run
	Created     string
	Markdown    bool
	Histogram   []bar
	Endpoints   []endpointView
	Screenshots []diffrec.ScreenshotResult
	Duplicates  []diffrec.Duplicate
}

type bar struct {
	Severity diffrec.Severity
	Count    int
	Width    int // percent of the largest bucket
}

type endpointView struct {
	diffrec.EndpointResult
	Rows []rowView
}

type rowView struct {
	Path      string
	Kind      diffrec.Kind
	Old       string
	New       string
	Inline    template.HTML
	Severity  diffrec.Severity
	Reason    string
	Truncated bool
}

// HTML writes a self-contained HTML report of run.
func HTML(w io.Writer, run *diffrec.Run) error {
	return render(w, run, false)
}

// Markdown writes the report as Markdown, converted from the HTML rendering.
func Markdown(w io.Writer, run *diffrec.Run) error {
	var buf bytes.Buffer
	if err := render(&buf, run, true); err != nil {
		return err
	}
	md, err := mdConverter.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("report: markdown: %w", err)
	}
	_, err = io.WriteString(w, md+"\n")
	return err
}

func render(w io.Writer, run *diffrec.Run, markdown bool) error {
	if run == nil {
		return errors.New("report: nil run")
	}
	data := pageData{
		Run:         run,
		Markdown:    markdown,
		Histogram:   histogram(run.Summary),
		Screenshots: run.Screenshots,
		Duplicates:  run.Duplicates,
	}
	if run.CreatedAt > 0 {
		data.Created = time.UnixMilli(run.CreatedAt).UTC().Format(time.RFC3339)
	}
	for _, r := range run.Results {
		if r.Status == diffrec.StatusIdentical {
			continue
		}
		v := endpointView{EndpointResult: r}
		for _, d := range r.Differences {
			v.Rows = append(v.Rows, row(d, !markdown))
		}
		data.Endpoints = append(data.Endpoints, v)
	}
	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	return nil
}

func histogram(s diffrec.Summary) []bar {
	peak := 0
	for _, sev := range diffrec.Severities {
		peak = max(peak, s.BySeverity[sev])
	}
	out := make([]bar, 0, len(diffrec.Severities))
	for _, sev := range diffrec.Severities {
		b := bar{Severity: sev, Count: s.BySeverity[sev]}
		if peak > 0 {
			b.Width = b.Count * 100 / peak
		}
		out = append(out, b)
	}
	return out
}

func row(d diffrec.Classified, inline bool) rowView {
	r := rowView{
		Path:      d.Path.Display(),
		Kind:      d.Kind,
		Severity:  d.Severity,
		Reason:    d.Reason,
		Truncated: d.Truncated,
	}
	o, hasOld := d.Old()
	n, hasNew := d.New()
	if hasOld {
		r.Old = clip(o.String())
	}
	if hasNew {
		r.New = clip(n.String())
	}
	if d.Kind == diffrec.ArrayLengthChanged && len(d.Tail) > 0 {
		r.New += " (tail " + clip(jsonval.ArrayValue(d.Tail...).String()) + ")"
	}
	if inline && hasOld && hasNew && o.Kind() == jsonval.String && n.Kind() == jsonval.String {
		r.Inline = InlineDiff(o.Str(), n.Str())
	}
	return r
}

// InlineDiff renders a character-level diff of two strings as sanitised
// <ins>/<del> markup.
func InlineDiff(before, after string) template.HTML {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))
	return template.HTML(inlinePolicy.Sanitize(dmp.DiffPrettyHtml(diffs)))
}

func clip(s string) string {
	if len(s) <= maxValueLen {
		return s
	}
	// Cut on a rune boundary.
	cut := maxValueLen
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}
