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
	reconerrors "github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/portscan"
	"github.com/recondor/recondor/internal/report"
)

var (
	bannerPorts   string
	bannerTimeout float64
	bannerWorkers int
	bannerFormat  string
	bannerOutput  string
)

// bannerCmd represents the banner command.
var bannerCmd = &cobra.Command{
	Use:   "banner <target>",
	Short: "Grab service banners from a target",
	Long: `Connect to a target's ports and collect whatever banners the
services announce, identifying the software behind each one where the
banner gives it away.`,
	Example: `  recondor banner example.com
  recondor banner 192.168.1.1 -p 21,22,25,80
  recondor banner example.com -t 5`,
	Args: cobra.ExactArgs(1),
	Run:  runBannerCmd,
}

func init() {
	rootCmd.AddCommand(bannerCmd)

	bannerCmd.Flags().StringVarP(&bannerPorts, "ports", "p", "",
		"Ports to probe: '21,22,80' or '1-1000' (default: common banner ports)")
	bannerCmd.Flags().Float64VarP(&bannerTimeout, "timeout", "t", 0,
		"Connection timeout in seconds (default: 3)")
	bannerCmd.Flags().IntVarP(&bannerWorkers, "workers", "w", 0,
		"Maximum concurrent workers (default: 10)")
	bannerCmd.Flags().StringVarP(&bannerFormat, "format", "f", "text",
		"Output format: text or json")
	bannerCmd.Flags().StringVarP(&bannerOutput, "output", "o", "",
		"Custom filename for results in the results directory")
}

func runBannerCmd(cmd *cobra.Command, args []string) {
	target := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	bannerCfg := banner.Config{
		Timeout: cfg.Banner.Timeout,
		Workers: cfg.Banner.Workers,
	}
	if bannerPorts != "" {
		ports, parseErr := portscan.ParsePorts(bannerPorts)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", parseErr)
			os.Exit(exitError)
		}
		bannerCfg.Ports = ports
	}
	if bannerTimeout > 0 {
		bannerCfg.Timeout = time.Duration(bannerTimeout * float64(time.Second))
	}
	if bannerWorkers > 0 {
		bannerCfg.Workers = bannerWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := banner.NewGrabber().Run(ctx, target, bannerCfg)
	if err != nil {
		if reconerrors.IsCode(err, reconerrors.CodeCanceled) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\n[-] Banner grab interrupted")
			os.Exit(exitInterrupt)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	savedPath := saveResult(cfg, "banner", result.Report(), bannerOutput)

	switch bannerFormat {
	case "json":
		printJSON(result.Report())
	default:
		report.RenderBannerTable(os.Stdout, result)
		if savedPath != "" {
			fmt.Printf("\n[+] Results saved to: %s\n", savedPath)
		}
	}
}
