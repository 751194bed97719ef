/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config provides configuration management for Strata.

Sources are applied with clear precedence:
 1. Command-line flags (highest priority, applied by the binary)
 2. Environment variables
 3. Configuration file
 4. Default values (lowest priority)

Configuration File Format:
The file uses a flat TOML subset, one key = value per line:

	# Strata Configuration
	data_dir = "/var/lib/strata"
	wal_file = "strata.wal"
	strict_overflow = true
	value_cache_size = 4096
	value_cache_shards = 16
	sequence_cache_size = 32
	lock_timeout_ms = 1000
	max_columns = 16384
	max_rows_per_table = 0   # 0 = unlimited
	log_level = "info"
	log_json = false

Environment Variables:
  - STRATA_DATA_DIR: Directory holding the WAL file
  - STRATA_WAL_FILE: WAL file name inside the data directory
  - STRATA_STRICT_OVERFLOW: Fail instead of wrapping on narrowing overflow (true/false)
  - STRATA_VALUE_CACHE_SIZE: Capacity of the process-wide value cache
  - STRATA_SEQUENCE_CACHE_SIZE: Default cache batch for new sequences
  - STRATA_LOCK_TIMEOUT_MS: How long DDL waits for an object lock
  - STRATA_LOG_LEVEL: Log level (debug, info, warn, error)
  - STRATA_LOG_JSON: Enable JSON logging (true/false)
  - STRATA_ENCRYPTION_ENABLED: Encrypt the WAL (true/false)
  - STRATA_ENCRYPTION_PASSPHRASE: Passphrase for the WAL key (required when encryption is enabled)
  - STRATA_ADMIN_PASSWORD: Initial admin password (first start only)
  - STRATA_CONFIG_FILE: Path to configuration file
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment variable names for configuration.
const (
	EnvDataDir              = "STRATA_DATA_DIR"
	EnvWALFile              = "STRATA_WAL_FILE"
	EnvStrictOverflow       = "STRATA_STRICT_OVERFLOW"
	EnvValueCacheSize       = "STRATA_VALUE_CACHE_SIZE"
	EnvSequenceCacheSize    = "STRATA_SEQUENCE_CACHE_SIZE"
	EnvLockTimeoutMs        = "STRATA_LOCK_TIMEOUT_MS"
	EnvLogLevel             = "STRATA_LOG_LEVEL"
	EnvLogJSON              = "STRATA_LOG_JSON"
	EnvEncryptionEnabled    = "STRATA_ENCRYPTION_ENABLED"
	EnvEncryptionPassphrase = "STRATA_ENCRYPTION_PASSPHRASE"
	EnvAdminPassword        = "STRATA_ADMIN_PASSWORD"
	EnvConfigFile           = "STRATA_CONFIG_FILE"
)

// DefaultConfigPaths are searched in order when no file is given.
var DefaultConfigPaths = []string{
	"/etc/strata/strata.conf",
	"$HOME/.config/strata/strata.conf",
	"./strata.conf",
}

// Config holds all configuration values for Strata.
type Config struct {
	// Storage
	DataDir string `toml:"data_dir" json:"data_dir"`
	WALFile string `toml:"wal_file" json:"wal_file"`

	// Values
	StrictOverflow   bool `toml:"strict_overflow" json:"strict_overflow"`
	ValueCacheSize   int  `toml:"value_cache_size" json:"value_cache_size"`
	ValueCacheShards int  `toml:"value_cache_shards" json:"value_cache_shards"`

	// Catalog and sequences
	SequenceCacheSize int `toml:"sequence_cache_size" json:"sequence_cache_size"`
	LockTimeoutMs     int `toml:"lock_timeout_ms" json:"lock_timeout_ms"`

	// Allocation limits
	MaxColumns      int `toml:"max_columns" json:"max_columns"`
	MaxRowsPerTable int `toml:"max_rows_per_table" json:"max_rows_per_table"` // 0 = unlimited

	// Encryption of the WAL at rest
	EncryptionEnabled    bool   `toml:"encryption_enabled" json:"encryption_enabled"`
	EncryptionPassphrase string `toml:"-" json:"-"`

	// Logging
	LogLevel string `toml:"log_level" json:"log_level"`
	LogJSON  bool   `toml:"log_json" json:"log_json"`

	// Not persisted to file
	AdminPassword string `toml:"-" json:"-"`
	ConfigFile    string `toml:"-" json:"-"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DataDir:           "./data",
		WALFile:           "strata.wal",
		StrictOverflow:    true,
		ValueCacheSize:    4096,
		ValueCacheShards:  16,
		SequenceCacheSize: 32,
		LockTimeoutMs:     1000,
		MaxColumns:        16384,
		MaxRowsPerTable:   0,
		EncryptionEnabled: false,
		LogLevel:          "info",
		LogJSON:           false,
	}
}

// LockTimeout returns the lock wait as a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// WALPath returns the full path of the WAL file.
func (c *Config) WALPath() string {
	return filepath.Join(c.DataDir, c.WALFile)
}

// Manager handles configuration loading, validation, and access.
type Manager struct {
	config *Config
	mu     sync.RWMutex

	onReload []func(*Config)
}

// NewManager creates a new configuration manager with default values.
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Set updates the configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// OnReload registers a callback to be called when configuration is reloaded.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

func (m *Manager) notifyReload() {
	m.mu.RLock()
	callbacks := make([]func(*Config), len(m.onReload))
	copy(callbacks, m.onReload)
	cfg := *m.config
	m.mu.RUnlock()

	for _, fn := range callbacks {
		fn(&cfg)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "data_dir cannot be empty")
	}
	if c.WALFile == "" {
		errs = append(errs, "wal_file cannot be empty")
	}
	if c.ValueCacheSize < 0 {
		errs = append(errs, fmt.Sprintf("invalid value_cache_size: %d (must be >= 0)", c.ValueCacheSize))
	}
	if c.ValueCacheShards < 1 || c.ValueCacheShards&(c.ValueCacheShards-1) != 0 {
		errs = append(errs, fmt.Sprintf("invalid value_cache_shards: %d (must be a power of two)", c.ValueCacheShards))
	}
	if c.SequenceCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid sequence_cache_size: %d (must be >= 1)", c.SequenceCacheSize))
	}
	if c.LockTimeoutMs < 0 {
		errs = append(errs, fmt.Sprintf("invalid lock_timeout_ms: %d", c.LockTimeoutMs))
	}
	if c.MaxColumns < 1 {
		errs = append(errs, fmt.Sprintf("invalid max_columns: %d", c.MaxColumns))
	}
	if c.MaxRowsPerTable < 0 {
		errs = append(errs, fmt.Sprintf("invalid max_rows_per_table: %d", c.MaxRowsPerTable))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	if c.EncryptionEnabled && c.EncryptionPassphrase == "" {
		errs = append(errs, "encryption is enabled but "+EnvEncryptionPassphrase+" is not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LoadFromFile loads configuration from a TOML file on top of the defaults.
func (m *Manager) LoadFromFile(path string) error {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := parseTOML(string(data), cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ConfigFile = path
	m.Set(cfg)
	return nil
}

// LoadFromEnv merges environment variables into the current configuration.
func (m *Manager) LoadFromEnv() {
	cfg := m.Get()

	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvWALFile); v != "" {
		cfg.WALFile = v
	}
	if v := os.Getenv(EnvStrictOverflow); v != "" {
		cfg.StrictOverflow = parseBool(v)
	}
	if v := os.Getenv(EnvValueCacheSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ValueCacheSize = n
		}
	}
	if v := os.Getenv(EnvSequenceCacheSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SequenceCacheSize = n
		}
	}
	if v := os.Getenv(EnvLockTimeoutMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockTimeoutMs = n
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv(EnvEncryptionEnabled); v != "" {
		cfg.EncryptionEnabled = parseBool(v)
	}
	if v := os.Getenv(EnvEncryptionPassphrase); v != "" {
		cfg.EncryptionPassphrase = v
	}
	if v := os.Getenv(EnvAdminPassword); v != "" {
		cfg.AdminPassword = v
	}

	m.Set(cfg)
}

// FindConfigFile returns the first existing configuration file, or "".
func FindConfigFile() string {
	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		if _, err := os.Stat(os.ExpandEnv(envPath)); err == nil {
			return os.ExpandEnv(envPath)
		}
	}
	for _, path := range DefaultConfigPaths {
		expanded := os.ExpandEnv(path)
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	return ""
}

// Load applies defaults, then the config file (if any), then the environment.
func (m *Manager) Load() error {
	if path := FindConfigFile(); path != "" {
		if err := m.LoadFromFile(path); err != nil {
			return err
		}
	}
	m.LoadFromEnv()
	return m.Get().Validate()
}

// Reload re-reads file and environment and notifies listeners.
func (m *Manager) Reload() error {
	path := m.Get().ConfigFile
	if path == "" {
		path = FindConfigFile()
	}

	m.Set(DefaultConfig())
	if path != "" {
		if err := m.LoadFromFile(path); err != nil {
			return err
		}
	}
	m.LoadFromEnv()
	if err := m.Get().Validate(); err != nil {
		return err
	}

	m.notifyReload()
	return nil
}

// parseTOML handles the flat key = value subset of TOML used by Strata.
func parseTOML(data string, cfg *Config) error {
	for lineNum, line := range strings.Split(data, "\n") {
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("line %d: invalid syntax: %s", lineNum+1, line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := applyConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNum+1, err)
		}
	}
	return nil
}

func applyConfigValue(cfg *Config, key, value string) error {
	intValue := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s value: %s", key, value)
		}
		*dst = n
		return nil
	}

	switch key {
	case "data_dir":
		cfg.DataDir = value
	case "wal_file":
		cfg.WALFile = value
	case "strict_overflow":
		cfg.StrictOverflow = parseBool(value)
	case "value_cache_size":
		return intValue(&cfg.ValueCacheSize)
	case "value_cache_shards":
		return intValue(&cfg.ValueCacheShards)
	case "sequence_cache_size":
		return intValue(&cfg.SequenceCacheSize)
	case "lock_timeout_ms":
		return intValue(&cfg.LockTimeoutMs)
	case "max_columns":
		return intValue(&cfg.MaxColumns)
	case "max_rows_per_table":
		return intValue(&cfg.MaxRowsPerTable)
	case "encryption_enabled":
		cfg.EncryptionEnabled = parseBool(value)
	case "log_level":
		cfg.LogLevel = value
	case "log_json":
		cfg.LogJSON = parseBool(value)
	default:
		// Unknown keys are ignored for forward compatibility.
	}
	return nil
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// String returns a human readable summary of the configuration.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("Strata Configuration:\n")
	fmt.Fprintf(&sb, "  Data Dir:            %s\n", c.DataDir)
	fmt.Fprintf(&sb, "  WAL File:            %s\n", c.WALFile)
	fmt.Fprintf(&sb, "  Strict Overflow:     %v\n", c.StrictOverflow)
	fmt.Fprintf(&sb, "  Value Cache Size:    %d (%d shards)\n", c.ValueCacheSize, c.ValueCacheShards)
	fmt.Fprintf(&sb, "  Sequence Cache Size: %d\n", c.SequenceCacheSize)
	fmt.Fprintf(&sb, "  Lock Timeout:        %s\n", c.LockTimeout())
	fmt.Fprintf(&sb, "  Encryption:          %v\n", c.EncryptionEnabled)
	fmt.Fprintf(&sb, "  Log Level:           %s\n", c.LogLevel)
	fmt.Fprintf(&sb, "  Log JSON:            %v\n", c.LogJSON)
	if c.ConfigFile != "" {
		fmt.Fprintf(&sb, "  Config File:         %s\n", c.ConfigFile)
	}
	return sb.String()
}
