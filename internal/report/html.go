package report

import (
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/recondor/recondor/internal/errors"
)

var htmlTemplate = template.Must(template.New("report").Parse(reportHTML))

type htmlData struct {
	Target string
	Date   string
	Data
}

// DNSTypes returns the answered record types in a stable order.
func (d htmlData) DNSTypes() []string {
	if d.DNSLookup == nil {
		return nil
	}
	types := make([]string, 0, len(d.DNSLookup.Records))
	for rtype := range d.DNSLookup.Records {
		types = append(types, rtype)
	}
	sort.Strings(types)
	return types
}

// RenderHTML writes the HTML report for the populated modules.
func RenderHTML(out io.Writer, target string, data Data, now time.Time) error {
	page := htmlData{
		Target: target,
		Date:   now.Format(reportDateLayout),
		Data:   data,
	}
	if err := htmlTemplate.Execute(out, page); err != nil {
		return errors.WrapScanError(errors.CodeReportWrite, "failed to render HTML report", err)
	}
	return nil
}

const reportHTML = `<!DOCTYPE html>
<html>
<head>
<title>Recon Report - {{.Target}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; line-height: 1.6; }
.header { background: linear-gradient(to right, #0066cc, #0099ff);
          color: white; padding: 20px; border-radius: 10px; }
.card { background: #f8f9fa; padding: 15px; margin: 10px 0;
        border-left: 4px solid #0066cc; border-radius: 5px; }
.badge { background: #28a745; color: white; padding: 3px 8px;
         border-radius: 10px; font-size: 0.9em; }
</style>
</head>
<body>

<div class="header">
<h1>Recon Report</h1>
<h3>Target: {{.Target}}</h3>
<p>Date: {{.Date}}</p>
</div>

<h2>Findings</h2>
{{if .PortScan}}
<div class="card"><h3>PORT SCAN</h3>
{{if .PortScan.OpenPorts}}
<ul>
{{range .PortScan.OpenPorts}}<li>Port {{.Port}}: {{.Service}}</li>
{{end}}</ul>
{{else}}
<p>No open ports</p>
{{end}}
</div>
{{end}}
{{if .DNSLookup}}
<div class="card"><h3>DNS LOOKUP</h3>
{{if .DNSLookup.Records}}
<ul>
{{$records := .DNSLookup.Records}}{{range .DNSTypes}}{{$rtype := .}}{{range index $records $rtype}}<li><strong>{{$rtype}}:</strong> {{.}}</li>
{{end}}{{end}}</ul>
{{else}}
<p>No DNS records</p>
{{end}}
</div>
{{end}}
{{if .BannerGrab}}
<div class="card"><h3>BANNER GRAB</h3>
{{if .BannerGrab.Banners}}
{{range .BannerGrab.Banners}}<p><strong>Port {{.Port}}:</strong> {{.Banner}}</p>
{{end}}
{{else}}
<p>No banners grabbed</p>
{{end}}
</div>
{{end}}
<hr>
</body>
</html>
`
