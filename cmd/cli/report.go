package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recondor/recondor/internal/banner"
	"github.com/recondor/recondor/internal/dnsenum"
	reconerrors "github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/portscan"
	"github.com/recondor/recondor/internal/report"
)

var reportPorts string

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report <target>",
	Short: "Run all recon modules and write a full report",
	Long: `Run the port scan, DNS enumeration, and banner grab against a
target, then write the combined results as JSON plus text and HTML
reports in the results directory.`,
	Example: `  recondor report example.com
  recondor report example.com -p 1-1000`,
	Args: cobra.ExactArgs(1),
	Run:  runReportCmd,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportPorts, "ports", "p", "",
		"Ports to scan: '80,443,8080' or '1-1000' (default: common ports)")
}

func runReportCmd(cmd *cobra.Command, args []string) {
	target := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	spec := reportPorts
	if spec == "" {
		spec = cfg.Scanning.DefaultPorts
	}
	ports, err := portscan.ParsePorts(spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanResult, err := portscan.Run(ctx, target, portscan.Config{
		Timeout: cfg.Scanning.Timeout,
		Workers: cfg.Scanning.Workers,
		Ports:   ports,
	})
	if err != nil {
		if reconerrors.IsCode(err, reconerrors.CodeCanceled) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\n[-] Recon interrupted")
			os.Exit(exitInterrupt)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	data := report.Data{PortScan: scanResult}

	// DNS and banner failures degrade the report instead of aborting it;
	// the port scan already succeeded.
	dnsResult, err := dnsenum.NewEnumerator().Run(ctx, target, dnsenum.Config{
		Nameserver: cfg.DNS.Nameserver,
		Timeout:    cfg.DNS.Timeout,
		Types:      cfg.DNS.Types,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: DNS enumeration failed: %v\n", err)
	} else {
		data.DNSLookup = dnsResult
	}

	bannerCfg := banner.Config{
		Timeout: cfg.Banner.Timeout,
		Workers: cfg.Banner.Workers,
	}
	if len(scanResult.OpenPorts) > 0 {
		for _, p := range scanResult.OpenPorts {
			bannerCfg.Ports = append(bannerCfg.Ports, p.Port)
		}
	}
	bannerResult, err := banner.NewGrabber().Run(ctx, target, bannerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: banner grab failed: %v\n", err)
	} else {
		data.BannerGrab = bannerResult
	}

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\n[-] Recon interrupted")
		os.Exit(exitInterrupt)
	}

	writer := report.NewWriter(cfg.Reports.Directory)

	jsonPath, err := writer.SaveJSON("recon", data, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	textPath, err := writer.SaveText(target, data, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	htmlPath, err := writer.SaveHTML(target, data, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	report.RenderText(os.Stdout, target, data, time.Now())

	fmt.Printf("\n[+] Results saved to: %s\n", jsonPath)
	fmt.Printf("[+] Text report: %s\n", textPath)
	fmt.Printf("[+] HTML report: %s\n", htmlPath)
}
