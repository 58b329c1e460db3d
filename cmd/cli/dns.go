package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recondor/recondor/internal/dnsenum"
	"github.com/recondor/recondor/internal/report"
)

var (
	dnsNameserver string
	dnsTypes      string
	dnsTimeout    float64
	dnsFormat     string
	dnsOutput     string
)

// dnsCmd represents the dns command.
var dnsCmd = &cobra.Command{
	Use:   "dns <domain>",
	Short: "Enumerate DNS records for a domain",
	Long: `Query a domain for its DNS records (A, AAAA, MX, NS, TXT, SOA,
CNAME by default). Record types that return no answer are omitted from
the output.`,
	Example: `  recondor dns example.com
  recondor dns example.com --types A,MX,TXT
  recondor dns example.com --nameserver 9.9.9.9`,
	Args: cobra.ExactArgs(1),
	Run:  runDNSCmd,
}

func init() {
	rootCmd.AddCommand(dnsCmd)

	dnsCmd.Flags().StringVar(&dnsNameserver, "nameserver", "",
		"Nameserver to query (default: system resolver)")
	dnsCmd.Flags().StringVar(&dnsTypes, "types", "",
		"Comma-separated record types (default: A,AAAA,MX,NS,TXT,SOA,CNAME)")
	dnsCmd.Flags().Float64VarP(&dnsTimeout, "timeout", "t", 0,
		"Query timeout in seconds (default: 4)")
	dnsCmd.Flags().StringVarP(&dnsFormat, "format", "f", "text",
		"Output format: text or json")
	dnsCmd.Flags().StringVarP(&dnsOutput, "output", "o", "",
		"Custom filename for results in the results directory")
}

func runDNSCmd(cmd *cobra.Command, args []string) {
	domain := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	dnsCfg := dnsenum.Config{
		Nameserver: cfg.DNS.Nameserver,
		Timeout:    cfg.DNS.Timeout,
		Types:      cfg.DNS.Types,
	}
	if dnsNameserver != "" {
		dnsCfg.Nameserver = dnsNameserver
	}
	if dnsTypes != "" {
		dnsCfg.Types = strings.Split(dnsTypes, ",")
	}
	if dnsTimeout > 0 {
		dnsCfg.Timeout = time.Duration(dnsTimeout * float64(time.Second))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := dnsenum.NewEnumerator().Run(ctx, domain, dnsCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	savedPath := saveResult(cfg, "dns", result.Report(), dnsOutput)

	switch dnsFormat {
	case "json":
		printJSON(result.Report())
	default:
		report.RenderDNSTable(os.Stdout, result)
		if savedPath != "" {
			fmt.Printf("\n[+] Results saved to: %s\n", savedPath)
		}
	}
}
