package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AnalyzerConfig holds the flow cleaning thresholds and scan tuning.
type AnalyzerConfig struct {
	MinPacketsPerFlow          int     `yaml:"min_packets_per_flow"`
	InactivityThresholdSeconds float64 `yaml:"inactivity_threshold_seconds"`
	NumWorkers                 int     `yaml:"num_workers"`
	SizeOfPacketChannel        int     `yaml:"size_of_packet_channel"`
	ProgressInterval           int64   `yaml:"progress_interval"`
}

// CacheConfig controls where intermediate artifacts are persisted.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`    // empty means next to the input capture
	Format  string `yaml:"format"` // json or gob
}

// JSONWriterConfig configures the on-disk report writer.
type JSONWriterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection settings for the ClickHouse writer.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig configures the report summary publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// WritersConfig groups every report sink.
type WritersConfig struct {
	JSON       JSONWriterConfig `yaml:"json"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
}

// APIConfig configures the HTTP report server.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	CaptureDir string `yaml:"capture_dir"` // captures selectable through ?file=
	MaxReports int    `yaml:"max_reports"` // analyzed captures kept in memory
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Cache    CacheConfig    `yaml:"cache"`
	Writers  WritersConfig  `yaml:"writers"`
	API      APIConfig      `yaml:"api"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Analyzer: AnalyzerConfig{
			MinPacketsPerFlow:          5,
			InactivityThresholdSeconds: 60,
			NumWorkers:                 1,
			SizeOfPacketChannel:        1000,
			ProgressInterval:           100000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Format:  "json",
		},
		Writers: WritersConfig{
			JSON: JSONWriterConfig{RootPath: "reports"},
			ClickHouse: ClickHouseConfig{
				Host:     "localhost",
				Port:     9000,
				Database: "default",
				Username: "default",
			},
			NATS: NATSConfig{
				URL:     "nats://127.0.0.1:4222",
				Subject: "flowspectra.reports",
			},
		},
		API: APIConfig{ListenAddr: ":8080", CaptureDir: "captures", MaxReports: 8},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Analyzer.MinPacketsPerFlow < 1 {
		return fmt.Errorf("analyzer.min_packets_per_flow must be at least 1, got %d", c.Analyzer.MinPacketsPerFlow)
	}
	if c.Analyzer.InactivityThresholdSeconds <= 0 {
		return fmt.Errorf("analyzer.inactivity_threshold_seconds must be positive, got %v", c.Analyzer.InactivityThresholdSeconds)
	}
	if c.Analyzer.NumWorkers < 1 {
		return fmt.Errorf("analyzer.num_workers must be at least 1, got %d", c.Analyzer.NumWorkers)
	}
	if c.Analyzer.SizeOfPacketChannel < 0 {
		return fmt.Errorf("analyzer.size_of_packet_channel must not be negative")
	}
	switch c.Cache.Format {
	case "json", "gob":
	default:
		return fmt.Errorf("cache.format must be json or gob, got %q", c.Cache.Format)
	}
	if c.API.MaxReports < 1 {
		return fmt.Errorf("api.max_reports must be at least 1, got %d", c.API.MaxReports)
	}
	if c.Writers.NATS.Enabled && c.Writers.NATS.Subject == "" {
		return fmt.Errorf("writers.nats.subject is required when the nats writer is enabled")
	}
	return nil
}
