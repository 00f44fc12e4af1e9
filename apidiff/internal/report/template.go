package report

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>apidiff run {{.Run.ID}}</title>
{{- if not .Markdown}}
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin: 0.5rem 0 1.5rem; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; text-align: left; vertical-align: top; }
td.value { font-family: monospace; max-width: 28rem; overflow-wrap: anywhere; }
.CRITICAL { background: #f8d7da; } .MAJOR { background: #fde2c5; }
.MINOR { background: #fff3cd; } .INFO { background: #e7f1ff; }
.bar { display: inline-block; height: 0.8rem; background: #555; }
ins { background: #d4f8d4; text-decoration: none; } del { background: #f8d4d4; }
</style>
{{- end}}
</head>
<body>
<h1>Migration comparison</h1>
<p>Run <code>{{.Run.ID}}</code>{{if .Created}} at {{.Created}}{{end}}:
{{if .Run.BeforeLabel}}{{.Run.BeforeLabel}}{{else}}before{{end}} ({{.Run.BeforeID}}) against
{{if .Run.AfterLabel}}{{.Run.AfterLabel}}{{else}}after{{end}} ({{.Run.AfterID}}).</p>

<h2>Summary</h2>
<table id="summary">
<tr><th>Endpoints</th><th>Identical</th><th>Different</th><th>Added</th><th>Removed</th><th>Errors</th><th>Skipped</th><th>Differences</th><th>Worst</th></tr>
<tr><td>{{.Run.Summary.Endpoints}}</td><td>{{.Run.Summary.Identical}}</td><td>{{.Run.Summary.Different}}</td><td>{{.Run.Summary.Added}}</td><td>{{.Run.Summary.Removed}}</td><td>{{.Run.Summary.Errors}}</td><td>{{.Run.Summary.Skipped}}</td><td>{{.Run.Summary.Differences}}</td><td>{{with .Run.Summary.Worst}}{{.}}{{else}}none{{end}}</td></tr>
</table>

<h2>Differences by severity</h2>
<table id="histogram">
<tr><th>Severity</th><th>Count</th>{{if not .Markdown}}<th></th>{{end}}</tr>
{{- range .Histogram}}
<tr class="{{.Severity}}"><td>{{.Severity}}</td><td>{{.Count}}</td>{{if not $.Markdown}}<td><span class="bar" style="width: {{.Width}}px"></span></td>{{end}}</tr>
{{- end}}
</table>

<h2>Endpoints</h2>
{{- if not .Endpoints}}
<p>All endpoints are identical.</p>
{{- end}}
{{- range .Endpoints}}
<h3 class="{{sevclass .Severity}}"><code>{{.Endpoint}}</code>: {{.Status}}{{with .Severity}} ({{.}}){{end}}</h3>
{{- with .Note}}<p>{{.}}</p>{{end}}
{{- with .Error}}<p>Error: <code>{{.}}</code></p>{{end}}
{{- if .Rows}}
<table class="differences">
<tr><th>Path</th><th>Change</th><th>Old</th><th>New</th>{{if not $.Markdown}}<th>Inline</th>{{end}}<th>Severity</th><th>Reason</th></tr>
{{- range .Rows}}
<tr class="{{.Severity}}"><td><code>{{.Path}}</code></td><td>{{.Kind}}{{if .Truncated}} (depth limit){{end}}</td><td class="value">{{.Old}}</td><td class="value">{{.New}}</td>{{if not $.Markdown}}<td class="value">{{.Inline}}</td>{{end}}<td>{{.Severity}}</td><td>{{.Reason}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- end}}

{{- if .Screenshots}}
<h2>Screenshots</h2>
<table id="screenshots">
<tr><th>Name</th><th>Status</th><th>Severity</th><th>Changed pixels</th><th>Detail</th></tr>
{{- range .Screenshots}}
<tr class="{{.Severity}}"><td>{{.Name}}</td><td>{{.Status}}</td><td>{{.Severity}}</td><td>{{printf "%.2f%%" (pct .DiffRatio)}}</td><td>{{.Reason}}{{.Error}}</td></tr>
{{- end}}
</table>
{{- end}}

{{- if .Duplicates}}
<h2>Duplicate endpoints</h2>
<table id="duplicates">
<tr><th>Endpoint</th><th>Side</th><th>Count</th><th>Conflicting</th><th>Kept</th></tr>
{{- range .Duplicates}}
<tr><td><code>{{.Endpoint}}</code></td><td>{{.Side}}</td><td>{{.Count}}</td><td>{{.Conflicting}}</td><td>{{.Kept}}</td></tr>
{{- end}}
</table>
{{- end}}
</body>
</html>
`
