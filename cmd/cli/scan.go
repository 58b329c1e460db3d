package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recondor/recondor/internal/config"
	reconerrors "github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/portscan"
	"github.com/recondor/recondor/internal/report"
)

const (
	exitError     = 1
	exitInterrupt = 130
)

var (
	scanPorts   string
	scanTimeout float64
	scanWorkers int
	scanFormat  string
	scanOutput  string
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a target for open TCP ports",
	Long: `Scan a domain name or IP address for open TCP ports using full
connect probes. Open ports are reported with their well-known service
names, and results are saved as JSON in the results directory.`,
	Example: `  recondor scan example.com
  recondor scan 192.168.1.1 -p 1-1000
  recondor scan example.com -p 80,443,8080
  recondor scan example.com -t 2 -w 100
  recondor scan example.com -f json -o custom_name`,
	Args: cobra.ExactArgs(1),
	Run:  runScanCmd,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "",
		"Ports to scan: '80,443,8080' or '1-1000' (default: common ports)")
	scanCmd.Flags().Float64VarP(&scanTimeout, "timeout", "t", 0,
		"Connection timeout in seconds (default: 1.5)")
	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0,
		"Maximum concurrent workers (default: 50)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "text",
		"Output format: text or json")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "",
		"Custom filename for results in the results directory")
}

func runScanCmd(cmd *cobra.Command, args []string) {
	target := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	spec := scanPorts
	if spec == "" {
		spec = cfg.Scanning.DefaultPorts
	}
	ports, err := portscan.ParsePorts(spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	scanCfg := portscan.Config{
		Timeout: cfg.Scanning.Timeout,
		Workers: cfg.Scanning.Workers,
		Ports:   ports,
	}
	if scanTimeout > 0 {
		scanCfg.Timeout = time.Duration(scanTimeout * float64(time.Second))
	}
	if scanWorkers > 0 {
		scanCfg.Workers = scanWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := portscan.Run(ctx, target, scanCfg)
	if err != nil {
		if reconerrors.IsCode(err, reconerrors.CodeCanceled) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\n[-] Scan interrupted")
			os.Exit(exitInterrupt)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	savedPath := saveResult(cfg, "portscan", result.Report(), scanOutput)

	switch scanFormat {
	case "json":
		printJSON(result.Report())
	default:
		report.RenderScanTable(os.Stdout, result)
		if savedPath != "" {
			fmt.Printf("\n[+] Results saved to: %s\n", savedPath)
		}
	}
}

// saveResult writes the JSON envelope to the results directory when
// auto-save is on or a filename was requested. Returns the saved path,
// or empty when saving was skipped or failed.
func saveResult(cfg *config.Config, prefix string, payload any, customName string) string {
	if !cfg.Reports.AutoSave && customName == "" {
		return ""
	}

	writer := report.NewWriter(cfg.Reports.Directory)
	path, err := writer.SaveJSON(prefix, payload, customName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save results: %v\n", err)
		return ""
	}
	return path
}

func printJSON(payload any) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode results: %v\n", err)
		os.Exit(exitError)
	}
	fmt.Println(string(data))
}
