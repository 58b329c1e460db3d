// Package cli implements the recondor command-line interface: cobra
// commands for port scanning, DNS enumeration, banner grabbing, and the
// API server mode.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/recondor/recondor/internal/config"
	"github.com/recondor/recondor/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "recondor",
	Short: "Reconnaissance toolkit",
	Long: `Recondor is a reconnaissance toolkit for security assessments. It
performs TCP connect port scans, DNS record enumeration, and service
banner grabbing, saving results as JSON for downstream tooling.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and runs it.
// Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./recondor.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads the config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("recondor")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RECONDOR")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// setConfigDefaults sets viper defaults mirroring config.Default.
func setConfigDefaults() {
	viper.SetDefault("scanning.timeout", "1.5s")
	viper.SetDefault("scanning.workers", 50)

	viper.SetDefault("dns.timeout", "4s")

	viper.SetDefault("banner.timeout", "3s")
	viper.SetDefault("banner.workers", 10)

	viper.SetDefault("reports.directory", "results")
	viper.SetDefault("reports.auto_save", true)

	viper.SetDefault("api.listen_addr", "127.0.0.1")
	viper.SetDefault("api.port", 8080)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
}

// loadConfig loads the full configuration for command execution.
func loadConfig() (*config.Config, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = "recondor.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging from the configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logger, err := logging.New(logging.Config{
		Level:     logging.LogLevel(cfg.Logging.Level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.Level == "debug",
	})
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	logging.SetDefault(logger)
}
