// Package config loads the scanner configuration from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// EnvPrefix prefixes every environment override (VULNSCAN_POLICY_FINGERPRINT, ...)
const EnvPrefix = "VULNSCAN"

// Config is the typed configuration of a run
type Config struct {
	Policy   entities.Policy `yaml:"policy" json:"policy"`
	Database DatabaseConfig  `yaml:"database" json:"database"`
	Cache    StoreConfig     `yaml:"cache" json:"cache"`
	Identity IdentityConfig  `yaml:"identity" json:"identity"`
	Scan     ScanConfig      `yaml:"scan" json:"scan"`
	Log      LogConfig       `yaml:"log" json:"log"`
	Metrics  MetricsConfig   `yaml:"metrics" json:"metrics"`

	// File is the config file that was read, empty when none was found
	File string `yaml:"-" json:"-"`
}

// DatabaseConfig configures the vulnerability database and its update service
type DatabaseConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	EntryPoint    string        `yaml:"entry_point" json:"entry_point"`
	Driver        string        `yaml:"driver" json:"driver"`
	DSN           string        `yaml:"dsn" json:"dsn"`
	LookupTimeout time.Duration `yaml:"lookup_timeout" json:"lookup_timeout"`
	SigningKeys   []string      `yaml:"signing_keys,omitempty" json:"signing_keys,omitempty"`
}

// StoreConfig selects a SQL backend
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// IdentityConfig configures artifact ids
type IdentityConfig struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`
}

// ScanConfig configures discovery and the worker pool
type ScanConfig struct {
	OutputDir         string `yaml:"output_dir" json:"output_dir"`
	Pattern           string `yaml:"pattern" json:"pattern"`
	Workers           int    `yaml:"workers" json:"workers"`
	PrintCheckedFiles bool   `yaml:"print_checked_files" json:"print_checked_files"`
}

// LogConfig configures the logger
type LogConfig struct {
	Format  string `yaml:"format" json:"format"`
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// MetricsConfig configures the metrics export
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" json:"textfile,omitempty"`
}

// New returns a viper instance with defaults and environment overrides set
func New() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := defaultDataDir()

	v.SetDefault("policy.fingerprint", "warning")
	v.SetDefault("policy.metadata", "warning")
	v.SetDefault("policy.updates", "auto")

	v.SetDefault("database.base_url", "https://www.victi.ms/")
	v.SetDefault("database.entry_point", "service/")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", filepath.Join(dataDir, "victims.db"))
	v.SetDefault("database.lookup_timeout", "30s")
	v.SetDefault("database.signing_keys", []string{})

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.dsn", filepath.Join(dataDir, "cache.db"))

	v.SetDefault("identity.algorithm", "sha256")

	v.SetDefault("scan.output_dir", ".")
	v.SetDefault("scan.pattern", "*.jar")
	v.SetDefault("scan.workers", 0)
	v.SetDefault("scan.print_checked_files", false)

	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.verbose", false)

	v.SetDefault("metrics.textfile", "")

	return v
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".victims"
	}
	return filepath.Join(home, ".victims")
}

// ReadFile reads cfgFile, or searches vulnscan.yaml in the working directory
// and $HOME/.config/vulnscan. A missing searched file is not an error.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("vulnscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "vulnscan"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load builds the typed configuration from v. Unrecognized severities are
// kept as entities.SeverityInvalid so the run reports them; an unrecognized
// update schedule is a configuration error.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{File: v.ConfigFileUsed()}

	// Parse errors are carried as SeverityInvalid and reported by Policy.Validate
	cfg.Policy.SetSeverity(entities.CategoryFingerprint, v.GetString("policy.fingerprint"))
	cfg.Policy.SetSeverity(entities.CategoryMetadata, v.GetString("policy.metadata"))

	updates, err := entities.ParseUpdateSchedule(v.GetString("policy.updates"))
	if err != nil {
		return nil, fmt.Errorf("invalid policy.updates: %w", err)
	}
	cfg.Policy.Updates = updates

	cfg.Database = DatabaseConfig{
		BaseURL:       v.GetString("database.base_url"),
		EntryPoint:    v.GetString("database.entry_point"),
		Driver:        v.GetString("database.driver"),
		DSN:           expandHome(v.GetString("database.dsn")),
		LookupTimeout: v.GetDuration("database.lookup_timeout"),
		SigningKeys:   v.GetStringSlice("database.signing_keys"),
	}
	if cfg.Database.LookupTimeout <= 0 {
		return nil, fmt.Errorf("invalid database.lookup_timeout: %q", v.GetString("database.lookup_timeout"))
	}

	cfg.Cache = StoreConfig{
		Driver: v.GetString("cache.driver"),
		DSN:    expandHome(v.GetString("cache.dsn")),
	}
	cfg.Identity = IdentityConfig{Algorithm: v.GetString("identity.algorithm")}
	cfg.Scan = ScanConfig{
		OutputDir:         v.GetString("scan.output_dir"),
		Pattern:           v.GetString("scan.pattern"),
		Workers:           v.GetInt("scan.workers"),
		PrintCheckedFiles: v.GetBool("scan.print_checked_files"),
	}
	if cfg.Scan.Workers < 0 {
		return nil, fmt.Errorf("invalid scan.workers: %d", cfg.Scan.Workers)
	}
	cfg.Log = LogConfig{
		Format:  v.GetString("log.format"),
		File:    v.GetString("log.file"),
		Verbose: v.GetBool("log.verbose"),
	}
	cfg.Metrics = MetricsConfig{Textfile: v.GetString("metrics.textfile")}

	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
