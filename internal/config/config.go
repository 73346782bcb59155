// Package config loads reconpilotd's YAML configuration: scan defaults,
// per-adapter timeout overrides, and the HTTP/WS API server settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxParallel is the concurrency cap used when Scan.MaxParallel
// is unset.
const DefaultMaxParallel = 3

// DefaultTaskTimeout is the per-adapter timeout used when neither the
// scan config nor a tool-specific override sets one.
const DefaultTaskTimeout = 300 * time.Second

type Config struct {
	Server  ServerConfig      `yaml:"server"`
	Scan    ScanConfig        `yaml:"scan"`
	Tools   map[string]Tool   `yaml:"tools"`
	Storage StorageConfig     `yaml:"storage"`
}

// ServerConfig controls the HTTP/WebSocket API surface.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
	MaxConnections int      `yaml:"max_connections"`
}

// ScanConfig holds the defaults applied to a scan session when the
// caller doesn't override them.
type ScanConfig struct {
	MaxParallel int           `yaml:"max_parallel"`
	Timeout     time.Duration `yaml:"timeout"`
	PassiveOnly bool          `yaml:"passive_only"`
	Stealth     bool          `yaml:"stealth"`
}

// Tool is a per-adapter override, keyed by adapter name in the Tools map.
type Tool struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig locates the SQLite database backing session persistence.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the YAML file at path, starting from the
// built-in defaults so unset fields keep sensible values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(defaultStateDir(), "reconpilotd", "sessions.db")
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the built-in defaults
// if no file exists there.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "127.0.0.1",
			MaxConnections: 1000,
		},
		Scan: ScanConfig{
			MaxParallel: DefaultMaxParallel,
			Timeout:     DefaultTaskTimeout,
		},
		Tools: map[string]Tool{},
		Storage: StorageConfig{
			Path: filepath.Join(defaultStateDir(), "reconpilotd", "sessions.db"),
		},
	}
}

// TimeoutFor resolves the adapter timeout for toolName: a per-tool
// override if configured, else the scan-wide default, else
// DefaultTaskTimeout.
func (c *Config) TimeoutFor(toolName string) time.Duration {
	if t, ok := c.Tools[toolName]; ok && t.Timeout > 0 {
		return t.Timeout
	}
	if c.Scan.Timeout > 0 {
		return c.Scan.Timeout
	}
	return DefaultTaskTimeout
}

// ToolEnabled reports whether toolName has been explicitly disabled in
// config. Tools not mentioned in the Tools map are enabled by default.
func (c *Config) ToolEnabled(toolName string) bool {
	if t, ok := c.Tools[toolName]; ok {
		return t.Enabled
	}
	return true
}

func defaultStateDir() string {
	if value := os.Getenv("XDG_STATE_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "state")
}

func defaultConfigDir() string {
	if value := os.Getenv("XDG_CONFIG_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// DefaultConfigPath returns the default XDG-compliant config file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "reconpilotd", "config.yaml")
}

// Diff compares two configs and returns human-readable descriptions of
// what changed, for logging on hot-reload.
func Diff(old, new *Config) []string {
	var changes []string

	if old.Scan.MaxParallel != new.Scan.MaxParallel {
		changes = append(changes, fmt.Sprintf("scan.max_parallel: %d → %d", old.Scan.MaxParallel, new.Scan.MaxParallel))
	}
	if old.Scan.Timeout != new.Scan.Timeout {
		changes = append(changes, fmt.Sprintf("scan.timeout: %s → %s", old.Scan.Timeout, new.Scan.Timeout))
	}
	if old.Scan.PassiveOnly != new.Scan.PassiveOnly {
		changes = append(changes, fmt.Sprintf("scan.passive_only: %v → %v", old.Scan.PassiveOnly, new.Scan.PassiveOnly))
	}
	if old.Scan.Stealth != new.Scan.Stealth {
		changes = append(changes, fmt.Sprintf("scan.stealth: %v → %v", old.Scan.Stealth, new.Scan.Stealth))
	}

	for name, t := range new.Tools {
		if ot, ok := old.Tools[name]; !ok {
			changes = append(changes, fmt.Sprintf("tools: added %s", name))
		} else if ot != t {
			changes = append(changes, fmt.Sprintf("tools.%s: changed", name))
		}
	}
	for name := range old.Tools {
		if _, ok := new.Tools[name]; !ok {
			changes = append(changes, fmt.Sprintf("tools: removed %s", name))
		}
	}

	if !slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		changes = append(changes, "server.allowed_origins: changed")
	}
	if old.Server.AuthToken != new.Server.AuthToken {
		changes = append(changes, "server.auth_token: changed")
	}

	return changes
}
