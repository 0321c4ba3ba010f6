// Package config loads vfolder settings from an optional YAML file,
// environment variables and command-line flags, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting
type Config struct {
	SourceDir   string `yaml:"source"`      // Root of the real files
	StateFile   string `yaml:"state"`       // Persisted forest (.json or .yaml)
	MountPoint  string `yaml:"mount"`       // FUSE mount point, empty to skip
	Listen      string `yaml:"listen"`      // HTTP listen address, empty to skip
	APIKey      string `yaml:"apiKey"`      // Bearer token for the HTTP API, empty to disable auth
	LogLevel    string `yaml:"logLevel"`    // ERROR, WARN, INFO, DEBUG or TRACE
	AutoSave    bool   `yaml:"autoSave"`    // Save after every mutation
	BackupCount int    `yaml:"backupCount"` // Number of state backups kept
	AllowOther  bool   `yaml:"allowOther"`  // Pass allow_other to FUSE

	Print bool `yaml:"-"` // Print the forest and exit
}

// Default returns the built-in defaults
func Default() Config {
	return Config{
		LogLevel:    "INFO",
		AutoSave:    true,
		BackupCount: 5,
	}
}

// LoadFile overlays the YAML file at path onto cfg. A missing file is an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays VFOLDER_* environment variables onto cfg
func ApplyEnv(cfg *Config) {
	cfg.SourceDir = envOr("VFOLDER_SOURCE", cfg.SourceDir)
	cfg.StateFile = envOr("VFOLDER_STATE", cfg.StateFile)
	cfg.MountPoint = envOr("VFOLDER_MOUNT", cfg.MountPoint)
	cfg.Listen = envOr("VFOLDER_LISTEN", cfg.Listen)
	cfg.APIKey = envOr("VFOLDER_API_KEY", cfg.APIKey)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.AutoSave = envBool("VFOLDER_AUTOSAVE", cfg.AutoSave)
	cfg.BackupCount = envInt("VFOLDER_BACKUP_COUNT", cfg.BackupCount)
	cfg.AllowOther = envBool("VFOLDER_ALLOW_OTHER", cfg.AllowOther)
}

// Load builds the configuration for args (without the program name). A
// -config flag names a YAML file applied before the environment; the other
// flags override both.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Default()

	configFile := fs.String("config", "", "YAML configuration file")
	source := fs.String("source", "", "Source directory holding the real files")
	stateFile := fs.String("state", "", "State file path (.json or .yaml)")
	mount := fs.String("mount", "", "Mount point for the virtual folder view")
	listen := fs.String("listen", "", "Address for the HTTP API, e.g. :8090")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	noAutoSave := fs.Bool("no-autosave", false, "Only save on explicit request and at shutdown")
	printForest := fs.Bool("print", false, "Print the virtual folders and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *configFile != "" {
		if err := LoadFile(*configFile, &cfg); err != nil {
			return cfg, err
		}
	}
	ApplyEnv(&cfg)

	if *source != "" {
		cfg.SourceDir = *source
	}
	if *stateFile != "" {
		cfg.StateFile = *stateFile
	}
	if *mount != "" {
		cfg.MountPoint = *mount
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *verbose {
		cfg.LogLevel = "DEBUG"
	}
	if *noAutoSave {
		cfg.AutoSave = false
	}
	cfg.Print = *printForest

	return cfg, cfg.Validate()
}

// Validate checks that the configuration can run
func (c Config) Validate() error {
	var errs []error
	if c.StateFile == "" {
		errs = append(errs, errors.New("state file path is required"))
	}
	if !c.Print {
		if c.SourceDir == "" {
			errs = append(errs, errors.New("source directory is required"))
		}
		if c.MountPoint == "" && c.Listen == "" {
			errs = append(errs, errors.New("at least one of mount point or listen address is required"))
		}
	}
	if c.BackupCount < 0 {
		errs = append(errs, fmt.Errorf("backup count must not be negative, got %d", c.BackupCount))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
