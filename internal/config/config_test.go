package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/" || cfg.StateFile != "/var/lib/bop/state.json" || cfg.LockFile != "/run/bop/auto.lock" {
		t.Errorf("paths = %+v", cfg)
	}
	if !cfg.HistoryEnabled || !cfg.Notify || cfg.Aggressive || cfg.InhibitorMode != "reduced" {
		t.Errorf("policy = %+v", cfg)
	}
	if cfg.Brightness.AutoDim || cfg.Brightness.DimPercent != 60 {
		t.Errorf("brightness = %+v", cfg.Brightness)
	}
}

func TestFileEnvAndFlags(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "bop.yaml")
	content := "inhibitor_mode: skip\nnotify: false\nbrightness:\n  auto_dim: true\n  dim_percent: 250\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOP_STATE_FILE", "/tmp/state.json")

	fs := pflag.NewFlagSet("bop", pflag.ContinueOnError)
	fs.String("root", "/", "")
	fs.Bool("aggressive", false, "")
	if err := fs.Parse([]string{"--root", "/srv/fixture", "--aggressive"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(file, fs)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InhibitorMode != "skip" || cfg.Notify {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if !cfg.Brightness.AutoDim || cfg.Brightness.DimPercent != 100 {
		t.Errorf("brightness = %+v", cfg.Brightness)
	}
	if cfg.StateFile != "/tmp/state.json" {
		t.Errorf("state_file = %q", cfg.StateFile)
	}
	if cfg.Root != "/srv/fixture" || !cfg.Aggressive {
		t.Errorf("flags not applied: root=%q aggressive=%v", cfg.Root, cfg.Aggressive)
	}
}

func TestSearchPathFile(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("config.yaml", []byte("unit_dir: /run/systemd/system\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UnitDir != "/run/systemd/system" {
		t.Errorf("unit_dir = %q", cfg.UnitDir)
	}
}

func TestMalformedFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "bop.yaml")
	if err := os.WriteFile(file, []byte("notify: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(file, nil); err == nil {
		t.Error("malformed config accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("missing explicit config accepted")
	}
}
