// Package config provides runtime configuration for bop.
// It uses Viper to load settings from defaults, a config file, environment
// variables and CLI flags, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for bop.
type Config struct {
	// Root is the filesystem prefix every /sys, /proc, /boot and /etc path
	// is resolved under. "/" in production.
	Root string `mapstructure:"root"`

	// ── State ────────────────────────────────────────────────────────────────
	StateFile      string `mapstructure:"state_file"`
	HistoryDB      string `mapstructure:"history_db"`
	HistoryEnabled bool   `mapstructure:"history_enabled"`
	LockFile       string `mapstructure:"lock_file"`

	// ── Generated files ──────────────────────────────────────────────────────
	UdevRule    string `mapstructure:"udev_rule"`
	UnitDir     string `mapstructure:"unit_dir"`
	ModprobeDir string `mapstructure:"modprobe_dir"`
	// BinaryPath is what the udev rule runs.
	BinaryPath string `mapstructure:"binary_path"`

	// ── Policy ───────────────────────────────────────────────────────────────
	Aggressive    bool   `mapstructure:"aggressive"`
	InhibitorMode string `mapstructure:"inhibitor_mode"` // skip | reduced | full
	Notify        bool   `mapstructure:"notify"`

	Brightness Brightness `mapstructure:"brightness"`
}

// Brightness controls backlight dimming when auto mode switches to battery.
type Brightness struct {
	AutoDim    bool `mapstructure:"auto_dim"`
	DimPercent int  `mapstructure:"dim_percent"`
}

// Flags maps config keys to the CLI flags that override them.
var Flags = map[string]string{
	"root":       "root",
	"aggressive": "aggressive",
}

// Load reads config from file (the explicit path, or config.yaml in
// /etc/bop, ~/.config/bop or the working directory) and falls back to
// defaults. Environment variables with prefix BOP_ override file values;
// flags set on fs override everything.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("root", "/")
	v.SetDefault("state_file", "/var/lib/bop/state.json")
	v.SetDefault("history_db", "/var/lib/bop/history.db")
	v.SetDefault("history_enabled", true)
	v.SetDefault("lock_file", "/run/bop/auto.lock")
	v.SetDefault("udev_rule", "/etc/udev/rules.d/85-bop.rules")
	v.SetDefault("unit_dir", "/etc/systemd/system")
	v.SetDefault("modprobe_dir", "/etc/modprobe.d")
	v.SetDefault("binary_path", "/usr/bin/bop")
	v.SetDefault("aggressive", false)
	v.SetDefault("inhibitor_mode", "reduced")
	v.SetDefault("notify", true)
	v.SetDefault("brightness.auto_dim", false)
	v.SetDefault("brightness.dim_percent", 60)

	// --- Config file ---
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/bop")
		v.AddConfigPath("$HOME/.config/bop")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// the search-path file is optional; an explicit one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("BOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags ---
	if fs != nil {
		for key, name := range Flags {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Brightness.DimPercent = min(max(cfg.Brightness.DimPercent, 1), 100)
	return &cfg, nil
}
