package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"netpilot/internal/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Default file locations on FreeBSD-family systems
const (
	DefaultLoaderConf = "/boot/loader.conf"
	DefaultRCConf     = "/etc/rc.conf"
	DefaultBackupDir  = "/var/backups/netpilot"
	DefaultAuditDB    = "/var/db/netpilot/audit.db"
)

// PathsConfig represents the files NetPilot reads and writes
type PathsConfig struct {
	LoaderConf string `yaml:"loader_conf"`
	RCConf     string `yaml:"rc_conf"`
	BackupDir  string `yaml:"backup_dir"`
	AuditDB    string `yaml:"audit_db"` // empty disables the audit journal
}

// DiscoveryConfig represents hardware enumeration settings
type DiscoveryConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// CommandsConfig represents external command settings
type CommandsConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// Config represents the main configuration structure
type Config struct {
	Logging   logging.LogConfig `yaml:"logging"`
	Paths     PathsConfig       `yaml:"paths"`
	Discovery DiscoveryConfig   `yaml:"discovery"`
	Commands  CommandsConfig    `yaml:"commands"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Logging: logging.LogConfig{
			Level:  "info",
			Format: "compact",
		},
		Paths: PathsConfig{
			LoaderConf: DefaultLoaderConf,
			RCConf:     DefaultRCConf,
			BackupDir:  DefaultBackupDir,
			AuditDB:    DefaultAuditDB,
		},
		Discovery: DiscoveryConfig{
			Timeout: 30 * time.Second,
		},
		Commands: CommandsConfig{
			Timeout:     30 * time.Second,
			LoadTimeout: 10 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
// An empty path returns the defaults.
func Load(configPath string) (*Config, error) {
	config := Default()
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validatePath("paths.loader_conf", c.Paths.LoaderConf); err != nil {
		return err
	}
	if err := validatePath("paths.rc_conf", c.Paths.RCConf); err != nil {
		return err
	}
	if err := validatePath("paths.backup_dir", c.Paths.BackupDir); err != nil {
		return err
	}
	if c.Paths.AuditDB != "" && !filepath.IsAbs(c.Paths.AuditDB) {
		return fmt.Errorf("paths.audit_db: must be an absolute path, got %q", c.Paths.AuditDB)
	}
	if filepath.Clean(c.Paths.LoaderConf) == filepath.Clean(c.Paths.RCConf) {
		return fmt.Errorf("paths.loader_conf and paths.rc_conf must be different files")
	}
	if c.Discovery.Timeout <= 0 {
		return fmt.Errorf("discovery.timeout must be positive")
	}
	if c.Commands.Timeout <= 0 {
		return fmt.Errorf("commands.timeout must be positive")
	}
	if c.Commands.LoadTimeout <= 0 {
		return fmt.Errorf("commands.load_timeout must be positive")
	}
	return nil
}

func validatePath(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", name)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%s: must be an absolute path, got %q", name, path)
	}
	return nil
}
