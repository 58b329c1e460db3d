package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recondor/recondor/internal/api"
	"github.com/recondor/recondor/internal/logging"
	"github.com/recondor/recondor/internal/metrics"
	"github.com/recondor/recondor/internal/report"
	"github.com/recondor/recondor/internal/scheduler"
	"github.com/recondor/recondor/internal/storage"
)

const systemMetricsInterval = 15 * time.Second

var (
	serveAddr string
	servePort int
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recondor API server",
	Long: `Run the REST API server, exposing the recon modules over HTTP
along with scan history and a live scan websocket. When the scheduler
is enabled in the configuration, recurring jobs run alongside the
server.`,
	Example: `  recondor serve
  recondor serve --addr 0.0.0.0 --port 9090`,
	Run: runServeCmd,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
}

func runServeCmd(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	cfg.API.Enabled = true
	if serveAddr != "" {
		cfg.API.ListenAddr = serveAddr
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *storage.Store
	if cfg.IsStorageEnabled() {
		store, err = storage.Connect(ctx, &cfg.Storage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		defer store.Close()
	}

	if cfg.Scheduler.Enabled {
		writer := report.NewWriter(cfg.Reports.Directory)
		sched := scheduler.New(scheduler.NewExecutor(cfg, writer, store))
		if err := sched.Load(cfg.Scheduler.Jobs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		if err := sched.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		defer sched.Stop()
	}

	server := api.New(cfg, store, version)

	// Keep the system gauges on /metrics current while the server runs.
	go metrics.GetGlobalMetrics().StartPeriodicUpdates(ctx, systemMetricsInterval)

	logging.Info("recondor server starting",
		"address", cfg.GetAPIAddress(),
		"storage", cfg.IsStorageEnabled(),
		"scheduler", cfg.Scheduler.Enabled)

	if err := server.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}
