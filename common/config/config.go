// Package config provides TOML configuration helpers shared by the pagecount CLI
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FindConfigFile searches for a config file in multiple platform-appropriate locations
// Returns the path and data if found, or an error if not found in any location
func FindConfigFile(filename string, component string) (string, []byte, error) {
	for _, path := range GetConfigSearchPaths(filename, component) {
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("%s not found in any search path", filename)
}

// GetConfigSearchPaths returns an ordered list of paths to search for config files
func GetConfigSearchPaths(filename string, component string) []string {
	var searchPaths []string

	// 1. System directory
	switch runtime.GOOS {
	case "windows":
		searchPaths = append(searchPaths, filepath.Join(os.Getenv("ProgramData"), "GetPrinterCount", component, filename))
	case "darwin":
		searchPaths = append(searchPaths, filepath.Join("/Library/Application Support", "GetPrinterCount", component, filename))
	default:
		searchPaths = append(searchPaths, filepath.Join("/etc/get-printer-count", component, filename))
	}

	// 2. User-specific config directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "AppData", "Local", "GetPrinterCount", component, filename))
		case "darwin":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "Library", "Application Support", "GetPrinterCount", component, filename))
		default:
			searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", "get-printer-count", component, filename))
		}
	}

	// 3. Executable directory
	if exePath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(exePath), filename))
	}

	// 4. Current working directory (lowest priority)
	searchPaths = append(searchPaths, filepath.Join(".", filename))

	return searchPaths
}

// WriteDefaultTOML writes a TOML configuration file with the provided structure.
// An existing file is left untouched and reported as an error.
func WriteDefaultTOML(configPath string, config interface{}) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadTOML loads a TOML configuration file into the provided structure.
// Keys the structure does not know about are rejected so typos surface early.
func LoadTOML(configPath string, config interface{}) error {
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("config file not found: %w", err)
	}

	meta, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys in %s: %s", configPath, strings.Join(keys, ", "))
	}

	return nil
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level     string `toml:"level"`
	Dir       string `toml:"dir"`
	MaxSizeMB int    `toml:"max_size_mb"` // 0 disables rotation
	MaxFiles  int    `toml:"max_files"`
}

// GetEnvPrefixed returns PREFIX_KEY when set, falling back to KEY.
func GetEnvPrefixed(prefix, key string) string {
	if prefix != "" {
		if val := os.Getenv(prefix + "_" + key); val != "" {
			return val
		}
	}
	return os.Getenv(key)
}

// ResolveConfigPath picks the config file location: PREFIX_CONFIG, PREFIX_CONFIG_PATH,
// CONFIG, CONFIG_PATH, then the flag value.
func ResolveConfigPath(prefix, flagVal string) string {
	for _, key := range []string{"CONFIG", "CONFIG_PATH"} {
		if val := GetEnvPrefixed(prefix, key); val != "" {
			return val
		}
	}
	return flagVal
}

// ApplyDatabaseEnvOverrides applies PREFIX_DB_PATH or DB_PATH
func ApplyDatabaseEnvOverrides(cfg *DatabaseConfig, prefix string) {
	if val := GetEnvPrefixed(prefix, "DB_PATH"); val != "" {
		cfg.Path = val
	}
}

// ApplyLoggingEnvOverrides applies LOG_LEVEL and LOG_DIR
func ApplyLoggingEnvOverrides(cfg *LoggingConfig) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Level = val
	}
	if val := os.Getenv("LOG_DIR"); val != "" {
		cfg.Dir = val
	}
}

// EnvString sets *dst when the variable is non-empty.
func EnvString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

// EnvInt sets *dst when the variable parses as an integer.
func EnvInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

// EnvBool sets *dst from common true/false spellings.
func EnvBool(name string, dst *bool) {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch val {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}
