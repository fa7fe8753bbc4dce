package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrancoLiuDev/get-printer-count/scanner"
)

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.False(t, cfg.SNMP.Enabled)
	assert.Equal(t, 20, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 5, cfg.Logging.MaxFiles)

	client := cfg.ClientConfig()
	assert.Equal(t, 10*time.Second, client.Timeout)
	assert.Equal(t, 5, client.MaxRedirects)
	assert.True(t, client.InsecureSkipVerify)
	assert.Equal(t, scanner.DefaultCandidatePaths, client.CandidatePaths)
	assert.Equal(t, []string{"http", "https"}, client.Schemes)

	snmp := cfg.SNMPClientConfig()
	assert.Equal(t, "public", snmp.Community)
	assert.Equal(t, uint16(161), snmp.Port)
	assert.Equal(t, 2*time.Second, snmp.Timeout)
}

func TestLoadAppConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
concurrency = 4

[input]
path = "printers.xlsx"

[output]
format = "json"

[http]
timeout_ms = 2500
schemes = ["https"]
candidate_paths = ["/DevMgmt/ProductUsageDyn.xml"]

[snmp]
enabled = true
community = "private"
version = "1"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "printers.xlsx", cfg.Input.Path)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "hp_usage_output.csv", cfg.Output.Path, "unset keys keep defaults")
	assert.Equal(t, 2500*time.Millisecond, cfg.ClientConfig().Timeout)
	assert.Equal(t, []string{"https"}, cfg.HTTP.Schemes)
	assert.True(t, cfg.SNMP.Enabled)
	assert.Equal(t, "private", cfg.SNMP.Community)
	assert.Equal(t, 5, cfg.HTTP.MaxRedirects)
}

func TestLoadAppConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http]\ntimeout = 5\n"), 0o644))

	_, err := LoadAppConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.timeout")
}

func TestLoadAppConfigRedirectsOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http]\nmax_redirects = 0\n"), 0o644))

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.ClientConfig().MaxRedirects)
	assert.Equal(t, 0, scanner.NewProber(cfg.ClientConfig(), nil).Config().MaxRedirects)
}

func TestLoadAppConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteDefaultAppConfig(path))

	t.Setenv("PAGECOUNT_INPUT", "from-env.csv")
	t.Setenv("PAGECOUNT_CONCURRENCY", "8")
	t.Setenv("PAGECOUNT_CANDIDATE_PATHS", "/a.xml, /b.xml,")
	t.Setenv("PAGECOUNT_SNMP_ENABLED", "yes")
	t.Setenv("PAGECOUNT_DB_PATH", "/tmp/history.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.csv", cfg.Input.Path)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, []string{"/a.xml", "/b.xml"}, cfg.HTTP.CandidatePaths)
	assert.True(t, cfg.SNMP.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero concurrency", func(c *AppConfig) { c.Concurrency = 0 }},
		{"unknown format", func(c *AppConfig) { c.Output.Format = "xml" }},
		{"no schemes", func(c *AppConfig) { c.HTTP.Schemes = nil }},
		{"bad scheme", func(c *AppConfig) { c.HTTP.Schemes = []string{"ftp"} }},
		{"negative timeout", func(c *AppConfig) { c.HTTP.TimeoutMs = -1 }},
		{"snmp v3", func(c *AppConfig) { c.SNMP.Enabled = true; c.SNMP.Version = "3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAppConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultAppConfig()
	cfg.SNMP.Version = "3"
	assert.NoError(t, cfg.Validate(), "snmp settings only matter when enabled")
}

func TestCLIFlagsOverrideConfig(t *testing.T) {
	flags, err := parseFlags([]string{"-input", "list.csv", "-concurrency", "3", "-debug", "-snmp"}, os.Stderr)
	require.NoError(t, err)

	cfg := DefaultAppConfig()
	cfg.Output.Path = "keep.csv"
	flags.apply(cfg)

	assert.Equal(t, "list.csv", cfg.Input.Path)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.SNMP.Enabled)
	assert.Equal(t, "keep.csv", cfg.Output.Path, "unset flags leave config alone")
}
