// Package config loads and validates the recondor configuration from
// YAML, layered over defaults so a missing file or a partial file both
// yield a runnable setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recondor/recondor/internal/storage"
)

// Config represents the complete recondor configuration.
type Config struct {
	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// DNS enumeration configuration
	DNS DNSConfig `yaml:"dns" json:"dns"`

	// Banner grabbing configuration
	Banner BannerConfig `yaml:"banner" json:"banner"`

	// Report output configuration
	Reports ReportsConfig `yaml:"reports" json:"reports"`

	// API server configuration
	API APIConfig `yaml:"api" json:"api"`

	// Scan history storage configuration
	Storage storage.Config `yaml:"storage" json:"storage"`

	// Scheduled scan configuration
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScanningConfig holds port-scan settings.
type ScanningConfig struct {
	// Connection timeout per probe
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Maximum concurrent probe workers
	Workers int `yaml:"workers" json:"workers"`

	// Default port specification ("" means the built-in port list)
	DefaultPorts string `yaml:"default_ports" json:"default_ports"`
}

// DNSConfig holds DNS enumeration settings.
type DNSConfig struct {
	// Nameserver override ("" means the system resolver)
	Nameserver string `yaml:"nameserver" json:"nameserver"`

	// Timeout per record-type query
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Record types to query
	Types []string `yaml:"types" json:"types"`
}

// BannerConfig holds banner-grabbing settings.
type BannerConfig struct {
	// Connection and read timeout per port
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Maximum concurrent workers
	Workers int `yaml:"workers" json:"workers"`
}

// ReportsConfig holds result persistence settings.
type ReportsConfig struct {
	// Directory results are written to
	Directory string `yaml:"directory" json:"directory"`

	// Save results automatically after CLI runs
	AutoSave bool `yaml:"auto_save" json:"auto_save"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	// Enable the API server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Request timeout
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enable CORS
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Allowed origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// SchedulerConfig holds recurring scan settings.
type SchedulerConfig struct {
	// Enable the scheduler
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Scheduled jobs
	Jobs []ScheduledJob `yaml:"jobs" json:"jobs"`
}

// ScheduledJob describes one recurring recon job.
type ScheduledJob struct {
	// Job name, used in logs and saved results
	Name string `yaml:"name" json:"name"`

	// Cron expression (five fields, standard cron syntax)
	Schedule string `yaml:"schedule" json:"schedule"`

	// Target domain or IP
	Target string `yaml:"target" json:"target"`

	// Port specification ("" means defaults)
	Ports string `yaml:"ports" json:"ports"`

	// Job type: scan, dns, or banner
	Type string `yaml:"type" json:"type"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			Timeout:      1500 * time.Millisecond,
			Workers:      50,
			DefaultPorts: "",
		},
		DNS: DNSConfig{
			Nameserver: "",
			Timeout:    4 * time.Second,
			Types:      nil,
		},
		Banner: BannerConfig{
			Timeout: 3 * time.Second,
			Workers: 10,
		},
		Reports: ReportsConfig{
			Directory: "results",
			AutoSave:  true,
		},
		API: APIConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1",
			Port:       8080,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
			},
			RequestTimeout: 30 * time.Second,
		},
		Storage:   storage.DefaultConfig(),
		Scheduler: SchedulerConfig{Enabled: false},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file, layered over defaults. A
// missing file returns the defaults unchanged.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scanning.Timeout <= 0 {
		return fmt.Errorf("scanning timeout must be positive")
	}
	if c.Scanning.Workers <= 0 {
		return fmt.Errorf("scanning workers must be positive")
	}

	if c.DNS.Timeout <= 0 {
		return fmt.Errorf("dns timeout must be positive")
	}

	if c.Banner.Timeout <= 0 {
		return fmt.Errorf("banner timeout must be positive")
	}
	if c.Banner.Workers <= 0 {
		return fmt.Errorf("banner workers must be positive")
	}

	if c.Reports.Directory == "" {
		return fmt.Errorf("reports directory is required")
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("API port must be between 1 and 65535")
		}
		if c.API.ListenAddr == "" {
			return fmt.Errorf("API listen address is required when API is enabled")
		}
	}

	if c.Storage.Enabled {
		if c.Storage.Host == "" {
			return fmt.Errorf("storage host is required when storage is enabled")
		}
		if c.Storage.Database == "" {
			return fmt.Errorf("storage database name is required when storage is enabled")
		}
		if c.Storage.Username == "" {
			return fmt.Errorf("storage username is required when storage is enabled")
		}
	}

	if c.Scheduler.Enabled {
		validJobTypes := map[string]bool{
			"scan":   true,
			"dns":    true,
			"banner": true,
		}
		for i := range c.Scheduler.Jobs {
			job := &c.Scheduler.Jobs[i]
			if job.Name == "" {
				return fmt.Errorf("scheduler job %d: name is required", i)
			}
			if job.Schedule == "" {
				return fmt.Errorf("scheduler job %q: schedule is required", job.Name)
			}
			if job.Target == "" {
				return fmt.Errorf("scheduler job %q: target is required", job.Name)
			}
			if !validJobTypes[job.Type] {
				return fmt.Errorf("scheduler job %q: invalid type: %s", job.Name, job.Type)
			}
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// GetAPIAddress returns the full API listen address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// IsAPIEnabled returns true if the API server is enabled.
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}

// IsStorageEnabled returns true if scan history storage is enabled.
func (c *Config) IsStorageEnabled() bool {
	return c.Storage.Enabled
}
