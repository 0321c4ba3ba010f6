package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("vfolder", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load(newFlagSet(), []string{
		"-source", "/src", "-state", "/tmp/state.json", "-mount", "/mnt/v", "-verbose", "-no-autosave",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SourceDir != "/src" || cfg.StateFile != "/tmp/state.json" || cfg.MountPoint != "/mnt/v" {
		t.Errorf("Flags not applied: %+v", cfg)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("Expected DEBUG log level, got %q", cfg.LogLevel)
	}
	if cfg.AutoSave {
		t.Error("Expected autosave to be disabled")
	}
	if cfg.BackupCount != 5 {
		t.Errorf("Expected default backup count, got %d", cfg.BackupCount)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "vfolder.yaml")
	content := `
source: /from-file
state: /file/state.yaml
listen: ":9000"
backupCount: 3
autoSave: false
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("VFOLDER_LISTEN", ":9100")
	t.Setenv("VFOLDER_BACKUP_COUNT", "7")

	cfg, err := Load(newFlagSet(), []string{"-config", configPath, "-source", "/from-flag"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SourceDir != "/from-flag" {
		t.Errorf("Flag should win over file, got %q", cfg.SourceDir)
	}
	if cfg.StateFile != "/file/state.yaml" {
		t.Errorf("File value should be kept, got %q", cfg.StateFile)
	}
	if cfg.Listen != ":9100" {
		t.Errorf("Environment should win over file, got %q", cfg.Listen)
	}
	if cfg.BackupCount != 7 {
		t.Errorf("Expected backup count from environment, got %d", cfg.BackupCount)
	}
	if cfg.AutoSave {
		t.Error("Expected autosave from file to be false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "mount only", cfg: Config{SourceDir: "s", StateFile: "f", MountPoint: "m"}},
		{name: "listen only", cfg: Config{SourceDir: "s", StateFile: "f", Listen: ":1"}},
		{name: "print needs only state", cfg: Config{StateFile: "f", Print: true}},
		{name: "missing state", cfg: Config{SourceDir: "s", MountPoint: "m"}, wantErr: true},
		{name: "no surface", cfg: Config{SourceDir: "s", StateFile: "f"}, wantErr: true},
		{name: "missing source", cfg: Config{StateFile: "f", Listen: ":1"}, wantErr: true},
		{name: "negative backups", cfg: Config{SourceDir: "s", StateFile: "f", Listen: ":1", BackupCount: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("Expected error for missing config file")
	}
}
