// Package report persists and renders recon results. JSON files keep
// the module envelopes intact so saved results round-trip; text and
// HTML renderings are for humans.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/recondor/recondor/internal/banner"
	"github.com/recondor/recondor/internal/dnsenum"
	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
	"github.com/recondor/recondor/internal/portscan"
)

const (
	// DefaultDir is where results land unless configured otherwise.
	DefaultDir = "results"

	jsonFileTimeLayout   = "2006-01-02_15-04-05"
	reportFileTimeLayout = "20060102_1504"
	reportDateLayout     = "2006-01-02 15:04:05"

	dirPerm  = 0o750
	filePerm = 0o600
)

// Data aggregates the results of one or more recon modules for a single
// target. Nil sections are omitted from every rendering.
type Data struct {
	PortScan   *portscan.Result `json:"port_scan,omitempty"`
	DNSLookup  *dnsenum.Result  `json:"dns_lookup,omitempty"`
	BannerGrab *banner.Result   `json:"banner_grab,omitempty"`
}

// Writer saves results under a directory, creating it on first use.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a writer rooted at dir, or DefaultDir when empty.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = DefaultDir
	}
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the directory results are written to.
func (w *Writer) Dir() string {
	return w.dir
}

// SaveJSON writes v as indented JSON. The file is named
// <prefix>_<timestamp>.json unless customName is given; a missing .json
// extension on customName is appended.
func (w *Writer) SaveJSON(prefix string, v any, customName string) (string, error) {
	name := customName
	switch {
	case name == "":
		name = fmt.Sprintf("%s_%s.json", prefix, w.now().Format(jsonFileTimeLayout))
	case !strings.HasSuffix(name, ".json"):
		name += ".json"
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.WrapScanError(errors.CodeReportWrite, "failed to encode results", err)
	}

	path, err := w.writeFile(name, data)
	if err != nil {
		return "", err
	}

	logging.Info("Results saved", "path", path)
	return path, nil
}

// SaveText writes a plain-text report named <target>_<timestamp>.txt.
func (w *Writer) SaveText(target string, data Data, customName string) (string, error) {
	var buf strings.Builder
	RenderText(&buf, target, data, w.now())

	name := w.reportName(target, customName, ".txt")
	return w.writeFile(name, []byte(buf.String()))
}

// SaveHTML writes an HTML report named <target>_<timestamp>.html.
func (w *Writer) SaveHTML(target string, data Data, customName string) (string, error) {
	var buf strings.Builder
	if err := RenderHTML(&buf, target, data, w.now()); err != nil {
		return "", err
	}

	name := w.reportName(target, customName, ".html")
	return w.writeFile(name, []byte(buf.String()))
}

func (w *Writer) reportName(target, customName, ext string) string {
	if customName != "" {
		if !strings.HasSuffix(customName, ext) {
			customName += ext
		}
		return customName
	}
	return fmt.Sprintf("%s_%s%s", target, w.now().Format(reportFileTimeLayout), ext)
}

func (w *Writer) writeFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dir, dirPerm); err != nil {
		return "", errors.WrapScanError(errors.CodeReportWrite, "failed to create results directory", err)
	}

	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", errors.WrapScanError(errors.CodeReportWrite, "failed to write results file", err)
	}
	return path, nil
}

// RenderText writes the human-readable report the CLI and text reports
// share: one section per populated module.
func RenderText(out io.Writer, target string, data Data, now time.Time) {
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", 50))
	fmt.Fprintf(out, "RECON REPORT\n")
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", 50))
	fmt.Fprintf(out, "Target: %s\n", target)
	fmt.Fprintf(out, "Date: %s\n", now.Format(reportDateLayout))

	if data.PortScan != nil {
		fmt.Fprintf(out, "\n[PORT SCAN]\n")
		if len(data.PortScan.OpenPorts) == 0 {
			fmt.Fprintf(out, "  No open ports\n")
		}
		for _, p := range data.PortScan.OpenPorts {
			fmt.Fprintf(out, "  Port %d: %s\n", p.Port, p.Service)
		}
	}

	if data.DNSLookup != nil {
		fmt.Fprintf(out, "\n[DNS]\n")
		for _, rtype := range recordTypeOrder(data.DNSLookup.Records) {
			fmt.Fprintf(out, "  %s:\n", rtype)
			for _, v := range data.DNSLookup.Records[rtype] {
				fmt.Fprintf(out, "    - %s\n", v)
			}
		}
	}

	if data.BannerGrab != nil {
		fmt.Fprintf(out, "\n[BANNERS]\n")
		if len(data.BannerGrab.Banners) == 0 {
			fmt.Fprintf(out, "  No banners grabbed\n")
		}
		for _, b := range data.BannerGrab.Banners {
			text := b.Banner
			if len(text) > 100 {
				text = text[:100] + "..."
			}
			fmt.Fprintf(out, "  Port %d (%s):\n    %s\n", b.Port, b.Service, text)
		}
	}
}

// RenderScanTable renders open ports as a table.
func RenderScanTable(out io.Writer, result *portscan.Result) {
	fmt.Fprintf(out, "\nTarget      : %s\n", result.Target)
	fmt.Fprintf(out, "Resolved IP : %s\n", result.ResolvedIP)
	fmt.Fprintf(out, "Scan Type   : %s\n", result.ScanType)
	fmt.Fprintf(out, "Scan Time   : %s\n\n", result.ScanTime)

	if len(result.OpenPorts) == 0 {
		fmt.Fprintf(out, "No open ports found\n")
		return
	}

	table := tablewriter.NewWriter(out)
	table.Header("Port", "Service")
	for _, p := range result.OpenPorts {
		_ = table.Append([]string{fmt.Sprintf("%d", p.Port), p.Service})
	}
	_ = table.Render()
}

// RenderDNSTable renders DNS records as a table, one row per record.
func RenderDNSTable(out io.Writer, result *dnsenum.Result) {
	fmt.Fprintf(out, "\nDomain      : %s\n", result.Domain)
	fmt.Fprintf(out, "Nameserver  : %s\n", result.Nameserver)
	fmt.Fprintf(out, "Lookup Time : %s\n\n", result.LookupTime)

	if len(result.Records) == 0 {
		fmt.Fprintf(out, "No records found\n")
		return
	}

	table := tablewriter.NewWriter(out)
	table.Header("Type", "Value")
	for _, rtype := range recordTypeOrder(result.Records) {
		for _, v := range result.Records[rtype] {
			_ = table.Append([]string{rtype, v})
		}
	}
	_ = table.Render()
}

// recordTypeOrder fixes the rendering order for DNS records: the default
// types in their usual order, then anything else alphabetically.
func recordTypeOrder(records map[string][]string) []string {
	seen := make(map[string]bool, len(records))
	order := make([]string, 0, len(records))
	for _, rtype := range dnsenum.DefaultTypes {
		if _, ok := records[rtype]; ok {
			order = append(order, rtype)
			seen[rtype] = true
		}
	}

	var extra []string
	for rtype := range records {
		if !seen[rtype] {
			extra = append(extra, rtype)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// RenderBannerTable renders grabbed banners as a table with the banner
// text clipped to keep rows readable.
func RenderBannerTable(out io.Writer, result *banner.Result) {
	fmt.Fprintf(out, "\nTarget      : %s\n", result.Target)
	fmt.Fprintf(out, "Resolved IP : %s\n", result.ResolvedIP)
	fmt.Fprintf(out, "Scan Time   : %s\n\n", result.ScanTime)

	if len(result.Banners) == 0 {
		fmt.Fprintf(out, "No banners grabbed\n")
		return
	}

	table := tablewriter.NewWriter(out)
	table.Header("Port", "Service", "Banner")
	for _, b := range result.Banners {
		text := b.Banner
		if len(text) > 60 {
			text = text[:60] + "..."
		}
		_ = table.Append([]string{fmt.Sprintf("%d", b.Port), b.Service, text})
	}
	_ = table.Render()
}
