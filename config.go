package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FrancoLiuDev/get-printer-count/common/config"
	"github.com/FrancoLiuDev/get-printer-count/report"
	"github.com/FrancoLiuDev/get-printer-count/scanner"
)

const envPrefix = "PAGECOUNT"

// AppConfig represents the CLI configuration
type AppConfig struct {
	Concurrency int                   `toml:"concurrency"`
	Input       InputConfig           `toml:"input"`
	Output      OutputConfig          `toml:"output"`
	HTTP        HTTPConfig            `toml:"http"`
	SNMP        SNMPConfig            `toml:"snmp"`
	Database    config.DatabaseConfig `toml:"database"`
	Logging     config.LoggingConfig  `toml:"logging"`
}

// InputConfig names the printer list
type InputConfig struct {
	Path string `toml:"path"`
}

// OutputConfig controls where results are written
type OutputConfig struct {
	Path        string `toml:"path"`
	Format      string `toml:"format"`       // csv or json
	MetricsPath string `toml:"metrics_path"` // Prometheus textfile, empty to skip
}

// HTTPConfig holds the EWS client policy
type HTTPConfig struct {
	TimeoutMs          int      `toml:"timeout_ms"`
	MaxRedirects       int      `toml:"max_redirects"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"` // EWS certificates are self-signed
	UserAgent          string   `toml:"user_agent"`
	Schemes            []string `toml:"schemes"`
	CandidatePaths     []string `toml:"candidate_paths"`
}

// SNMPConfig holds the model fallback settings
type SNMPConfig struct {
	Enabled   bool   `toml:"enabled"`
	Community string `toml:"community"`
	Version   string `toml:"version"`
	Port      int    `toml:"port"`
	TimeoutMs int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
}

// DefaultAppConfig returns configuration with sensible defaults
func DefaultAppConfig() *AppConfig {
	client := scanner.DefaultClientConfig()
	snmp := scanner.DefaultSNMPConfig()
	return &AppConfig{
		Concurrency: 1,
		Output: OutputConfig{
			Path:   "hp_usage_output.csv",
			Format: report.FormatCSV,
		},
		HTTP: HTTPConfig{
			TimeoutMs:          int(client.Timeout / time.Millisecond),
			MaxRedirects:       client.MaxRedirects,
			InsecureSkipVerify: client.InsecureSkipVerify,
			UserAgent:          client.UserAgent,
			Schemes:            client.Schemes,
			CandidatePaths:     client.CandidatePaths,
		},
		SNMP: SNMPConfig{
			Enabled:   false,
			Community: snmp.Community,
			Version:   snmp.Version,
			Port:      int(snmp.Port),
			TimeoutMs: int(snmp.Timeout / time.Millisecond),
			Retries:   snmp.Retries,
		},
		Logging: config.LoggingConfig{
			Level:     "info",
			MaxSizeMB: 20,
			MaxFiles:  5,
		},
	}
}

// LoadAppConfig loads configuration from a TOML file, then applies
// environment overrides. The file must exist.
func LoadAppConfig(configPath string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if err := config.LoadTOML(configPath, cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// WriteDefaultAppConfig writes the default configuration to configPath
func WriteDefaultAppConfig(configPath string) error {
	return config.WriteDefaultTOML(configPath, DefaultAppConfig())
}

func applyEnvOverrides(cfg *AppConfig) {
	config.EnvString(envPrefix+"_INPUT", &cfg.Input.Path)
	config.EnvString(envPrefix+"_OUTPUT", &cfg.Output.Path)
	config.EnvString(envPrefix+"_FORMAT", &cfg.Output.Format)
	config.EnvString(envPrefix+"_METRICS", &cfg.Output.MetricsPath)
	config.EnvInt(envPrefix+"_CONCURRENCY", &cfg.Concurrency)

	config.EnvInt(envPrefix+"_HTTP_TIMEOUT_MS", &cfg.HTTP.TimeoutMs)
	config.EnvBool(envPrefix+"_INSECURE_SKIP_VERIFY", &cfg.HTTP.InsecureSkipVerify)
	if val := os.Getenv(envPrefix + "_CANDIDATE_PATHS"); val != "" {
		cfg.HTTP.CandidatePaths = splitList(val)
	}

	config.EnvBool(envPrefix+"_SNMP_ENABLED", &cfg.SNMP.Enabled)
	config.EnvString(envPrefix+"_SNMP_COMMUNITY", &cfg.SNMP.Community)
	config.EnvInt(envPrefix+"_SNMP_TIMEOUT_MS", &cfg.SNMP.TimeoutMs)

	config.ApplyDatabaseEnvOverrides(&cfg.Database, envPrefix)
	config.ApplyLoggingEnvOverrides(&cfg.Logging)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings no run could use.
func (c *AppConfig) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	switch strings.ToLower(c.Output.Format) {
	case report.FormatCSV, report.FormatJSON:
	default:
		return fmt.Errorf("output format must be csv or json, got %q", c.Output.Format)
	}
	if len(c.HTTP.Schemes) == 0 {
		return fmt.Errorf("http.schemes must not be empty")
	}
	for _, s := range c.HTTP.Schemes {
		if s != "http" && s != "https" {
			return fmt.Errorf("unsupported scheme %q", s)
		}
	}
	if c.HTTP.TimeoutMs < 0 || c.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http timeout and redirect limit must not be negative")
	}
	if c.SNMP.Enabled {
		if c.SNMP.Version != "1" && c.SNMP.Version != "2c" {
			return fmt.Errorf("snmp.version must be \"1\" or \"2c\", got %q", c.SNMP.Version)
		}
		if c.SNMP.Port < 0 || c.SNMP.Port > 65535 {
			return fmt.Errorf("snmp.port out of range: %d", c.SNMP.Port)
		}
	}
	return nil
}

// ClientConfig converts the [http] section for the prober.
func (c *AppConfig) ClientConfig() scanner.ClientConfig {
	return scanner.ClientConfig{
		Timeout:            time.Duration(c.HTTP.TimeoutMs) * time.Millisecond,
		MaxRedirects:       c.HTTP.MaxRedirects,
		InsecureSkipVerify: c.HTTP.InsecureSkipVerify,
		UserAgent:          c.HTTP.UserAgent,
		Schemes:            c.HTTP.Schemes,
		CandidatePaths:     c.HTTP.CandidatePaths,
	}
}

// SNMPClientConfig converts the [snmp] section for the model detector.
func (c *AppConfig) SNMPClientConfig() scanner.SNMPConfig {
	return scanner.SNMPConfig{
		Community: c.SNMP.Community,
		Version:   c.SNMP.Version,
		Port:      uint16(c.SNMP.Port),
		Timeout:   time.Duration(c.SNMP.TimeoutMs) * time.Millisecond,
		Retries:   c.SNMP.Retries,
	}
}
